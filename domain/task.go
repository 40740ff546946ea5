package domain

// Column widths of the tasks table.
const (
	MaxCodeLength = 50
	MaxNameLength = 150
)

// Amounts are expressed in hundredths of a day.
type Amounts struct {
	Budget            int64 `json:"budget"`
	InitiallyConsumed int64 `json:"initially_consumed"`
	Todo              int64 `json:"todo"`
}

// Add returns the component-wise sum.
func (a Amounts) Add(other Amounts) Amounts {
	return Amounts{
		Budget:            a.Budget + other.Budget,
		InitiallyConsumed: a.InitiallyConsumed + other.InitiallyConsumed,
		Todo:              a.Todo + other.Todo,
	}
}

// IsZero reports whether every amount is zero.
func (a Amounts) IsZero() bool {
	return a == Amounts{}
}

// Task is a node of the ordered task tree.
//
// Path holds the ancestors' sibling indices and Number the task's own index,
// so FullPath() is the prefix shared by every descendant. Amounts are only
// authoritative while the task is a leaf; see OwnAmounts.
type Task struct {
	ID            int64   `json:"id"`
	Path          Path    `json:"path"`
	Number        int     `json:"number"`
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Comment       string  `json:"comment,omitempty"`
	Amounts       Amounts `json:"amounts"`
	SubTasksCount int     `json:"sub_tasks_count"`
	Version       int64   `json:"version"`
}

// FullPath is Path followed by the task's own number.
func (t *Task) FullPath() Path {
	out := make(Path, len(t.Path), len(t.Path)+1)
	copy(out, t.Path)
	return append(out, byte(t.Number))
}

// IsLeaf reports whether the task has no subtasks.
func (t *Task) IsLeaf() bool {
	return t != nil && t.SubTasksCount == 0
}

// IsRoot reports whether the task has no parent.
func (t *Task) IsRoot() bool {
	return t != nil && len(t.Path) == 0
}

// OwnAmounts returns the task's own amounts when it is a leaf. Containers
// carry no authoritative amounts and report ok == false.
func (t *Task) OwnAmounts() (Amounts, bool) {
	if !t.IsLeaf() {
		return Amounts{}, false
	}
	return t.Amounts, true
}

// Clone returns a deep copy.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Path = t.Path.Clone()
	return &c
}
