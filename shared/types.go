package shared

import "time"

type ServerConfig struct {
	Snapcron SnapcronConfig `mapstructure:"snapcron" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Lock     LockConfig     `mapstructure:"lock" validate:"required"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Google   GoogleConfig   `mapstructure:"google"`
}

type SnapcronConfig struct {
	Cron      CronConfig      `mapstructure:"cron" validate:"required"`
	Listener  ListenerConfig  `mapstructure:"listener" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
}

type CronConfig struct {
	TimeZone string `mapstructure:"timeZone" validate:"required"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
}

type SchedulerConfig struct {
	ScanInterval time.Duration `mapstructure:"scanInterval" validate:"required,min=1s"`
	Lookahead    time.Duration `mapstructure:"lookahead" validate:"required,min=1s"`
	LeaseTTL     time.Duration `mapstructure:"leaseTTL" validate:"required,gtfield=ScanInterval"`
	Concurrency  int           `mapstructure:"concurrency" validate:"min=0"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`
	DSN             string `mapstructure:"dsn" validate:"required_if=Driver postgres"`
	Dir             string `mapstructure:"dir"`
	ConnectAttempts uint   `mapstructure:"connectAttempts"`
}

type LockConfig struct {
	Backend string      `mapstructure:"backend" validate:"required,oneof=database redis memory"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

type SnapshotConfig struct {
	WebhookURL        string        `mapstructure:"webhookURL" validate:"omitempty,url"`
	RequestsPerSecond float64       `mapstructure:"requestsPerSecond" validate:"min=0"`
	Burst             int           `mapstructure:"burst" validate:"min=0"`
	Timeout           time.Duration `mapstructure:"timeout"`
	DeliveryAttempts  int           `mapstructure:"deliveryAttempts" validate:"min=0"`
	Workers           int           `mapstructure:"workers" validate:"min=0"`
}

type GoogleConfig struct {
	ApplicationCredentials string        `mapstructure:"applicationCredentials"`
	Storage                StorageConfig `mapstructure:"storage"`
}

type StorageConfig struct {
	Bucket                    string `mapstructure:"bucket" validate:"required_if=EnableSqliteBackupAndSync true"`
	Prefix                    string `mapstructure:"prefix"`
	SqliteBackupSchedule      string `mapstructure:"sqliteBackupSchedule" validate:"required_if=EnableSqliteBackupAndSync true"`
	EnableSqliteBackupAndSync bool   `mapstructure:"enableSqliteBackupAndSync"`
}
