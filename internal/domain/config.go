package domain

// Config mirrors ~/.risklens/config.yaml.
type Config struct {
	ConfigFormatVersion string            `yaml:"config_format_version"`
	Preferences         Preferences       `yaml:"preferences"`
	Models              []ModelDefinition `yaml:"models"`
	Triage              TriageSettings    `yaml:"triage"`
	Analysis            AnalysisSettings  `yaml:"analysis"`
	Storage             StorageSettings   `yaml:"storage"`
	Sessions            SessionSettings   `yaml:"sessions"`
	History             HistorySettings   `yaml:"history"`
}

// Preferences captures user level toggles.
type Preferences struct {
	DefaultModel   string   `yaml:"default_model"`
	FallbackModels []string `yaml:"fallback_models"`
	TimeoutSeconds int      `yaml:"timeout"`
	CacheReplies   bool     `yaml:"cache_replies"`
}

// TriageSettings configures the pattern classifier.
type TriageSettings struct {
	Enabled   bool   `yaml:"enabled"`
	RulesFile string `yaml:"rules_file"`
}

// AnalysisSettings points at the external portfolio-analysis backend.
type AnalysisSettings struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout"`
	Enrich         bool   `yaml:"enrich"`
}

// StorageSettings controls where portfolio and transcript data live.
type StorageSettings struct {
	DatabasePath string `yaml:"database_path"`
}

// SessionSettings controls guest session lifecycle.
type SessionSettings struct {
	GuestTTLMinutes int `yaml:"guest_ttl_minutes"`
	RatePerMinute   int `yaml:"rate_per_minute"`
	RateBurst       int `yaml:"rate_burst"`
}

// HistorySettings controls the chat-input history navigator.
type HistorySettings struct {
	MaxEntries int    `yaml:"max_entries"`
	FilePath   string `yaml:"file_path"`
}
