// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: PostgreSQL connection string or SQLite file/URI (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - TokenSecret: HMAC secret for bearer tokens (required)
  - TokenTTL: Lifetime of issued tokens (default: 12h)
  - SeedFile: Optional YAML file loaded at startup
  - OTELEndpoint: Optional OTLP/HTTP trace endpoint

# CLI Flags

	-p                     Server port
	-d                     Database URL
	-t                     Database type
	-seed                  Seed file
	-token-secret          Token signing secret
	-env-file              Dotenv file (default .env, optional)
	-issue-operator-token  Print an operator token and exit

# Environment Variables

Flags fall back to environment variables, which may come from a dotenv file:

	PORT                    → -p
	DATABASE_URL            → -d
	DATABASE_TYPE           → -t
	SEED_FILE               → -seed
	TOKEN_SECRET            → -token-secret
	TOKEN_TTL
	TALLYHALL_OTEL_ENDPOINT

CLI flags take precedence over environment variables, and real environment
variables take precedence over the dotenv file.
*/
package cliparse
