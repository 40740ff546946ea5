package monitor

import "time"

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Status struct {
	Store        string    `json:"store"`
	PostgreSQL   bool      `json:"postgresql"`
	Redis        bool      `json:"redis"`
	CacheEnabled bool      `json:"cache_enabled"`
	Buffer       bool      `json:"buffer"`
	BufferSize   int       `json:"buffer_size"`
	LastCheck    time.Time `json:"last_check"`
}

func (s Status) primaryOK() bool {
	return s.Store == StoreMemory || s.PostgreSQL
}
