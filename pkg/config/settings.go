package config

import "time"

// Settings is the full set of knobs read by the pipeline binaries.
type Settings struct {
	Mongo        MongoSettings
	Sources      SourceSettings
	Runner       RunnerSettings
	PGDSN        string        `env:"PG_DSN"` // replication is enabled when set
	DAGFile      string        `env:"ETL_DAG_FILE" validate:"omitempty,file"`
	HTTPWait     time.Duration `env:"HTTP_TIMEOUT" validate:"gt=0"`
	HTTPProfile  string        `env:"HTTP_CLIENT" validate:"oneof=json plain"`
	ReportAddr   string        `env:"REPORT_ADDR" validate:"required"`
	ReportPretty bool          `env:"REPORT_PRETTY"` // indent the JSON run report
}

// MongoSettings addresses the document store.
type MongoSettings struct {
	URI      string `env:"MONGO_URI" validate:"omitempty,uri"` // when set, Host and Port are ignored
	Host     string `env:"MONGO_HOST" validate:"required_without=URI"`
	Port     int    `env:"MONGO_PORT" validate:"min=1,max=65535"`
	Database string `env:"MONGO_DB" validate:"required"`
}

// SourceSettings parameterizes the three upstream APIs.
type SourceSettings struct {
	WorldBankBaseURL string `env:"WORLDBANK_BASE_URL" validate:"required,url"`
	HipolabsBaseURL  string `env:"HIPOLABS_BASE_URL" validate:"required,url"`
	CountryCode      string `env:"ETL_COUNTRY_CODE" validate:"required,alpha"`
	CountryName      string `env:"ETL_COUNTRY_NAME" validate:"required"`
	IndicatorID      string `env:"ETL_INDICATOR_ID" validate:"required"`
	PerPage          int    `env:"ETL_INDICATOR_PER_PAGE" validate:"min=1,max=32500"`
	MaxPages         int    `env:"ETL_INDICATOR_MAX_PAGES" validate:"min=0"` // 0 = follow every page
}

// RunnerSettings mirrors the orchestrator's uniform task policy.
type RunnerSettings struct {
	Retries     int           `env:"ETL_RETRIES" validate:"min=0"`
	RetryDelay  time.Duration `env:"ETL_RETRY_DELAY" validate:"min=0"`
	MaxParallel int           `env:"ETL_MAX_PARALLEL" validate:"min=1"`
}

// Load builds Settings from the environment, falling back to the deployment
// defaults.
func Load() Settings {
	root := New()
	mongo := root.Prefix("MONGO_")
	etl := root.Prefix("ETL_")

	return Settings{
		Mongo: MongoSettings{
			URI:      mongo.MayString("URI", ""),
			Host:     mongo.MayString("HOST", "mongo"),
			Port:     mongo.MayInt("PORT", 27017),
			Database: mongo.MayString("DB", "project2"),
		},
		Sources: SourceSettings{
			WorldBankBaseURL: root.MayString("WORLDBANK_BASE_URL", "https://api.worldbank.org/v2"),
			HipolabsBaseURL:  root.MayString("HIPOLABS_BASE_URL", "http://universities.hipolabs.com"),
			CountryCode:      etl.MayString("COUNTRY_CODE", "MX"),
			CountryName:      etl.MayString("COUNTRY_NAME", "Mexico"),
			IndicatorID:      etl.MayString("INDICATOR_ID", "SE.TER.ENRR"),
			PerPage:          etl.MayInt("INDICATOR_PER_PAGE", 100),
			MaxPages:         etl.MayInt("INDICATOR_MAX_PAGES", 0),
		},
		Runner: RunnerSettings{
			Retries:     etl.MayInt("RETRIES", 1),
			RetryDelay:  etl.MayDuration("RETRY_DELAY", 5*time.Minute),
			MaxParallel: etl.MayInt("MAX_PARALLEL", 3),
		},
		PGDSN:        root.MayString("PG_DSN", ""),
		DAGFile:      etl.MayString("DAG_FILE", ""),
		HTTPWait:     root.MayDuration("HTTP_TIMEOUT", 30*time.Second),
		HTTPProfile:  root.MayString("HTTP_CLIENT", "json"),
		ReportAddr:   root.MayString("REPORT_ADDR", ":8080"),
		ReportPretty: root.MayBool("REPORT_PRETTY", true),
	}
}
