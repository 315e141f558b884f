package providers

import (
	"os"
	"strings"
)

func lookupEnv(k string) string {
	return strings.TrimSpace(os.Getenv(k))
}

func envOr(k, fallback string) string {
	if v := lookupEnv(k); v != "" {
		return v
	}
	return fallback
}
