package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	AdminKeySalt string
	BallotSalt   string

	// External collaborators
	FaceAPIURL    string
	FaceThreshold float64
	SMTPAddr      string
	SMTPFrom      string
	RedisURI      string
}

// ParseFlags validates flags and sets port number
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("safidy", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKeySalt, "admin-salt", "", "Admin key salt (prefer env)")
	fs.StringVar(&cfg.BallotSalt, "ballot-salt", "", "Ballot obfuscation salt (prefer env)")

	// Collaborators
	fs.StringVar(&cfg.FaceAPIURL, "face-api", "", "Face comparison service URL")
	fs.Float64Var(&cfg.FaceThreshold, "face-threshold", 0, "Face match distance threshold")
	fs.StringVar(&cfg.SMTPAddr, "smtp", "", "SMTP relay host:port (log sender when empty)")
	fs.StringVar(&cfg.SMTPFrom, "smtp-from", "", "From address for OTP mail")
	fs.StringVar(&cfg.RedisURI, "redis", "", "Redis URI for the handshake-token store (in-memory when empty)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 8017 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, errors.New("DATABASE_TYPE must be sqlite or postgres")
	}

	// Secrets - MUST be provided
	if cfg.AdminKeySalt == "" {
		cfg.AdminKeySalt = os.Getenv("ADMIN_KEY_SALT")
	}
	if cfg.AdminKeySalt == "" {
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	}

	if cfg.BallotSalt == "" {
		cfg.BallotSalt = os.Getenv("BALLOT_SALT")
	}
	if cfg.BallotSalt == "" {
		return Config{}, errors.New("BALLOT_SALT required")
	}

	// Collaborator settings are optional; sensible dev fallbacks apply
	if cfg.FaceAPIURL == "" {
		cfg.FaceAPIURL = os.Getenv("FACE_API_URL")
	}
	if cfg.FaceThreshold == 0 {
		if v := os.Getenv("FACE_THRESHOLD"); v != "" {
			threshold, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return Config{}, errors.New("invalid FACE_THRESHOLD env variable")
			}
			cfg.FaceThreshold = threshold
		} else {
			cfg.FaceThreshold = 0.7
		}
	}
	if cfg.SMTPAddr == "" {
		cfg.SMTPAddr = os.Getenv("SMTP_ADDR")
	}
	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = os.Getenv("SMTP_FROM")
	}
	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = "no-reply@safidy.local"
	}
	if cfg.RedisURI == "" {
		cfg.RedisURI = os.Getenv("REDIS_URI")
	}

	return cfg, nil
}
