package config

const (
	EnvPrefix = "TIPLEDGER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "TIPLEDGER_APP_ENV"
	EnvPort     = "TIPLEDGER_APP_PORT"
	EnvLogLevel = "TIPLEDGER_LOG_LEVEL"

	EnvDBDSN         = "TIPLEDGER_DB_DSN"
	EnvDBHost        = "TIPLEDGER_DB_HOST"
	EnvDBUser        = "TIPLEDGER_DB_USER"
	EnvDBPassword    = "TIPLEDGER_DB_PASSWORD"
	EnvDBName        = "TIPLEDGER_DB_NAME"
	EnvDBLockTimeout = "TIPLEDGER_DB_LOCK_TIMEOUT"

	EnvRedisURL = "TIPLEDGER_REDIS_URL"

	EnvGCPProjectID         = "TIPLEDGER_GCP_PROJECT_ID"
	EnvPubSubTipEventsTopic = "TIPLEDGER_PUBSUB_TIP_EVENTS_TOPIC"
	EnvPubSubTipEventsSub   = "TIPLEDGER_PUBSUB_TIP_EVENTS_SUBSCRIPTION"

	EnvPublishTimeout = "TIPLEDGER_EVENTING_PUBLISH_TIMEOUT"

	EnvMaintenanceInterval = "TIPLEDGER_MAINTENANCE_INTERVAL"
	EnvMaintenanceLockTTL  = "TIPLEDGER_MAINTENANCE_LOCK_TTL"
)
