// Package config loads the pipeline's exhaustive environment-driven
// configuration using Viper, with an optional .env file
// loaded via godotenv before binding.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Scraper holds every crawl-time tunable.
type Scraper struct {
	UserAgent            string
	PageTimeout          time.Duration
	NavigationTimeout    time.Duration
	MaxRetries           int
	RetryDelay           time.Duration
	MaxDepth             int
	NetworkIdleTimeout   time.Duration
	MaxPagesPerCanonical int
	MinLinkScore         int
	BypassScoreThreshold int
	CriticalKeywords     []string
	HighKeywords         []string
	GeneralKeywords      []string
	ExcludePatterns      []string
	MaxKeywordPathSegments int
	ProbeTLDs            []string
	QueryBlocklist       []string
	IndexFilenames       []string
}

// Robots holds the robots.txt gate's configuration.
type Robots struct {
	Respect   bool
	UserAgent string
}

// LLM holds the classifier's configuration.
type LLM struct {
	APIKey                  string
	Model                   string
	Temperature             float64
	MaxTokens               int
	PromptTemplatePath      string
	EnrichedTemplatePath    string
	MaxRetriesOnMismatch    int
	EnableEnrichment        bool
}

// Phone holds the phone normalizer's configuration.
type Phone struct {
	TargetCountryCodes []string
	DefaultRegion      string
}

// Extractor holds the candidate extractor's configuration.
type Extractor struct {
	SnippetWindow           int
	CompanyNameTriggerRadius int
}

// Data holds input/output plumbing configuration.
type Data struct {
	InputPath                  string
	OutputDir                  string
	OutputFilenameTemplate     string
	RowRange                   string
	ConsecutiveEmptyRowsToStop int
}

// Logging holds the two logging verbosity levels.
type Logging struct {
	FileLevel    string
	ConsoleLevel string
}

// Concurrency holds the orchestrator's worker-pool and politeness limits.
type Concurrency struct {
	RowWorkers      int
	RequestsPerHost float64
}

// Config is the fully-resolved run configuration.
type Config struct {
	Scraper     Scraper
	Robots      Robots
	LLM         LLM
	Phone       Phone
	Extractor   Extractor
	Data        Data
	Logging     Logging
	Concurrency Concurrency
	RunID       string
}

// Load reads configuration from the environment (optionally seeded by a
// .env file at dotenvPath, silently skipped if absent) using Viper with
// the CONTACTMINER_ prefix and nested-key underscore binding.
func Load(dotenvPath string) (Config, error) {
	if dotenvPath != "" {
		_ = godotenv.Load(dotenvPath) // missing .env is not fatal
	}

	v := viper.New()
	v.SetEnvPrefix("CONTACTMINER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := Config{
		Scraper: Scraper{
			UserAgent:              v.GetString("scraper.user_agent"),
			PageTimeout:            v.GetDuration("scraper.page_timeout"),
			NavigationTimeout:      v.GetDuration("scraper.navigation_timeout"),
			MaxRetries:             v.GetInt("scraper.max_retries"),
			RetryDelay:             v.GetDuration("scraper.retry_delay"),
			MaxDepth:               v.GetInt("scraper.max_depth"),
			NetworkIdleTimeout:     v.GetDuration("scraper.networkidle_timeout"),
			MaxPagesPerCanonical:   v.GetInt("scraper.max_pages_per_canonical"),
			MinLinkScore:           v.GetInt("scraper.min_link_score"),
			BypassScoreThreshold:   v.GetInt("scraper.bypass_score_threshold"),
			CriticalKeywords:       v.GetStringSlice("scraper.critical_keywords"),
			HighKeywords:           v.GetStringSlice("scraper.high_keywords"),
			GeneralKeywords:        v.GetStringSlice("scraper.general_keywords"),
			ExcludePatterns:        v.GetStringSlice("scraper.exclude_patterns"),
			MaxKeywordPathSegments: v.GetInt("scraper.max_keyword_path_segments"),
			ProbeTLDs:              v.GetStringSlice("scraper.probe_tlds"),
			QueryBlocklist:         v.GetStringSlice("scraper.query_blocklist"),
			IndexFilenames:         v.GetStringSlice("scraper.index_filenames"),
		},
		Robots: Robots{
			Respect:   v.GetBool("robots.respect"),
			UserAgent: v.GetString("robots.user_agent"),
		},
		LLM: LLM{
			APIKey:               v.GetString("llm.api_key"),
			Model:                v.GetString("llm.model"),
			Temperature:          v.GetFloat64("llm.temperature"),
			MaxTokens:            v.GetInt("llm.max_tokens"),
			PromptTemplatePath:   v.GetString("llm.prompt_template_path"),
			EnrichedTemplatePath: v.GetString("llm.enriched_template_path"),
			MaxRetriesOnMismatch: v.GetInt("llm.max_retries_on_number_mismatch"),
			EnableEnrichment:     v.GetBool("llm.enable_enrichment"),
		},
		Phone: Phone{
			TargetCountryCodes: v.GetStringSlice("phone.target_country_codes"),
			DefaultRegion:      v.GetString("phone.default_region"),
		},
		Extractor: Extractor{
			SnippetWindow:            v.GetInt("extractor.snippet_window"),
			CompanyNameTriggerRadius: v.GetInt("extractor.company_name_trigger_radius"),
		},
		Data: Data{
			InputPath:                  v.GetString("data.input_path"),
			OutputDir:                  v.GetString("data.output_dir"),
			OutputFilenameTemplate:     v.GetString("data.output_filename_template"),
			RowRange:                   v.GetString("data.row_range"),
			ConsecutiveEmptyRowsToStop: v.GetInt("data.consecutive_empty_rows_to_stop"),
		},
		Logging: Logging{
			FileLevel:    v.GetString("logging.file_level"),
			ConsoleLevel: v.GetString("logging.console_level"),
		},
		Concurrency: Concurrency{
			RowWorkers:      v.GetInt("concurrency.row_workers"),
			RequestsPerHost: v.GetFloat64("concurrency.requests_per_host"),
		},
		RunID: v.GetString("run_id"),
	}

	if cfg.Data.InputPath == "" {
		return Config{}, fmt.Errorf("config: data.input_path (CONTACTMINER_DATA_INPUT_PATH) is required")
	}
	if cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf("config: llm.api_key (CONTACTMINER_LLM_API_KEY) is required")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scraper.user_agent", "ContactMinerBot/1.0")
	v.SetDefault("scraper.page_timeout", 60*time.Second)
	v.SetDefault("scraper.navigation_timeout", 60*time.Second)
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.retry_delay", 2*time.Second)
	v.SetDefault("scraper.max_depth", 2)
	v.SetDefault("scraper.networkidle_timeout", 0)
	v.SetDefault("scraper.max_pages_per_canonical", 20)
	v.SetDefault("scraper.min_link_score", 1)
	v.SetDefault("scraper.bypass_score_threshold", 100)
	v.SetDefault("scraper.critical_keywords", []string{"impressum", "kontakt", "contact", "imprint"})
	v.SetDefault("scraper.high_keywords", []string{"legal", "privacy", "terms", "about", "about-us"})
	v.SetDefault("scraper.general_keywords", []string{"team", "support", "help", "office", "location"})
	v.SetDefault("scraper.exclude_patterns", []string{"/media/", "/blog/", "/wp-content/", "/video/"})
	v.SetDefault("scraper.max_keyword_path_segments", 4)
	v.SetDefault("scraper.probe_tlds", []string{"de", "com", "at", "ch"})
	v.SetDefault("scraper.query_blocklist", []string{"fallback"})
	v.SetDefault("scraper.index_filenames", []string{"index.html", "index.htm", "default.asp", "default.aspx"})

	v.SetDefault("robots.respect", true)
	v.SetDefault("robots.user_agent", "ContactMinerBot/1.0")

	v.SetDefault("llm.model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.prompt_template_path", "prompts/classify_phone_numbers.tmpl")
	v.SetDefault("llm.enriched_template_path", "prompts/enrich_contact_info.tmpl")
	v.SetDefault("llm.max_retries_on_number_mismatch", 2)
	v.SetDefault("llm.enable_enrichment", false)

	v.SetDefault("phone.target_country_codes", []string{"DE", "AT", "CH"})
	v.SetDefault("phone.default_region", "DE")

	v.SetDefault("extractor.snippet_window", 40)
	v.SetDefault("extractor.company_name_trigger_radius", 80)

	v.SetDefault("data.output_dir", "./output")
	v.SetDefault("data.output_filename_template", "{report}_{run_id}")
	v.SetDefault("data.row_range", "")
	v.SetDefault("data.consecutive_empty_rows_to_stop", 25)

	v.SetDefault("logging.file_level", "debug")
	v.SetDefault("logging.console_level", "info")

	v.SetDefault("concurrency.row_workers", 5)
	v.SetDefault("concurrency.requests_per_host", 2.0)
}
