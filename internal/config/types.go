package config

// ConfigLogger настройки логирования
type ConfigLogger struct {
	Level  string `mapstructure:"level" default:"info"`
	Format string `mapstructure:"format" default:"console"`
}

// ConfigServer настройки сервера
type ConfigServer struct {
	PortGRPC                int    `mapstructure:"port_grpc" default:"50051"`
	PortHTTP                int    `mapstructure:"port_http" default:"8080"`
	HTTPReadTimeout         int    `mapstructure:"http_read_timeout" default:"10"`
	HTTPIdleTimeout         int    `mapstructure:"http_idle_timeout" default:"120"`
	HTTPReadHeaderTimeout   int    `mapstructure:"http_read_header_timeout" default:"5"`
	GracefulShutdownTimeout int    `mapstructure:"graceful_shutdown_timeout" default:"15"`
	AuthToken               string `mapstructure:"auth_token"`
}

// ConfigHTTP настройки HTTP API (CORS и rate limiting)
type ConfigHTTP struct {
	CORSAllowedOrigins string `mapstructure:"cors_allowed_origins" default:"*"`
	CORSMaxAge         int    `mapstructure:"cors_max_age" default:"86400"`
	RateLimitRPS       int    `mapstructure:"rate_limit_rps" default:"100"`
	RateLimitBurst     int    `mapstructure:"rate_limit_burst" default:"10"`
}

// ConfigStorage настройки хранилища заметок
type ConfigStorage struct {
	Driver string `mapstructure:"driver" default:"memory"` // memory | sqlite | postgres | mysql
	DSN    string `mapstructure:"dsn"`
}

// ConfigChannel настройки канала событий (Kafka).
// Поля-указатели допускают явный 0: значение по умолчанию ставится только для отсутствующего ключа.
type ConfigChannel struct {
	Driver               string `mapstructure:"driver" default:"kafka"` // kafka | memory
	Bootstrap            string `mapstructure:"bootstrap" default:"localhost:9092"`
	Topic                string `mapstructure:"topic" default:"note_events"`
	GroupID              string `mapstructure:"group_id" default:"notes-indexer"`
	ConnectRetries       int    `mapstructure:"connect_retries" default:"5"`
	ConnectRetryDelayMS  *int   `mapstructure:"connect_retry_delay_ms" default:"5000"`
	PublishTimeoutMS     int    `mapstructure:"publish_timeout_ms" default:"10000"`
	PublishRetries       *int   `mapstructure:"publish_retries" default:"3"`
	PublishBackoffMS     *int   `mapstructure:"publish_backoff_ms" default:"1000"`
	OnConnectFailure     string `mapstructure:"on_connect_failure" default:"fail"` // fail | degrade
	Async                bool   `mapstructure:"async"`
	SubscriberBuffer     int    `mapstructure:"subscriber_buffer" default:"64"`
	RedeliveryCapacity   int    `mapstructure:"redelivery_capacity" default:"1000"`
	RedeliverySchedule   string `mapstructure:"redelivery_schedule" default:"@every 30s"`
	ProjectorRetryWaitMS int    `mapstructure:"projector_retry_wait_ms" default:"1000"`
}

// ConfigCache настройки read-through кэша
type ConfigCache struct {
	Driver     string `mapstructure:"driver" default:"memory"` // memory | redis | none
	Addr       string `mapstructure:"addr" default:"localhost:6379"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds" default:"300"`
	Capacity   int    `mapstructure:"capacity" default:"10000"`
}

// ConfigSearch настройки поискового индекса
type ConfigSearch struct {
	Driver    string `mapstructure:"driver" default:"memory"` // memory | elastic
	Addresses string `mapstructure:"addresses" default:"http://localhost:9200"`
	Index     string `mapstructure:"index" default:"notes"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// Config основная структура конфигурации
type Config struct {
	Logger  ConfigLogger  `mapstructure:"logger"`
	Server  ConfigServer  `mapstructure:"server"`
	HTTP    ConfigHTTP    `mapstructure:"http"`
	Storage ConfigStorage `mapstructure:"storage"`
	Channel ConfigChannel `mapstructure:"channel"`
	Cache   ConfigCache   `mapstructure:"cache"`
	Search  ConfigSearch  `mapstructure:"search"`
}
