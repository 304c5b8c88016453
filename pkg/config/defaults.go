package config

import "github.com/spf13/viper"

// setDefaults registers the built-in defaults. Every value can be
// overridden by the config file or the environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "cidrd")
	v.SetDefault("database.username", "cidrd")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_min_size", 5)
	v.SetDefault("database.pool_max_size", 10)
	v.SetDefault("database.pool_max_idle_timeout", 300)
	v.SetDefault("database.pool_acquire_conn_timeout", 5)
	v.SetDefault("database.pool_close_timeout", 10)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.request_timeout", 30)
	v.SetDefault("api.shutdown_timeout", 15)

	v.SetDefault("auth.default_token_ttl", 86400)
	v.SetDefault("auth.auth_cache_ttl", 120)
	v.SetDefault("auth.api_key_cookie", "apisessionkey")

	v.SetDefault("worker.job_queue_query_interval", 5)
	v.SetDefault("scheduler.delete_expired_interval", 30)

	v.SetDefault("only_global_cidrs", true)
}
