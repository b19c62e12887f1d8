// Package config loads formroom's server configuration.
//
// Settings come from, in increasing precedence: built-in defaults, an
// optional YAML file, and FORMROOM_* environment variables. Nested keys
// map to environment names by upper-casing and replacing dots with
// underscores, so storage.redis.addr is FORMROOM_STORAGE_REDIS_ADDR.
//
// A minimal file:
//
//	server:
//	  addr: ":8080"
//	  public_base_url: https://formroom.example
//	storage:
//	  backend: sqlite
//	  sqlite:
//	    path: /var/lib/formroom/formroom.db
//	crypto:
//	  active_key: k2
//	  keys:
//	    k1: <base64>
//	    k2: <base64>
//	identity:
//	  secret: <at least 32 bytes>
//
// FORMROOM_CRYPTO_KEY is a shortcut for a single key named "default".
package config
