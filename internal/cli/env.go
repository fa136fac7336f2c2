package cli

import (
	"os"
	"strconv"
	"strings"

	"github.com/vk/callgrid/internal/publish"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "CALLGRID_"

func env(key, def string) string {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(env(key, ""))
	if err != nil {
		return def
	}
	return n
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(env(key, "false"))
	return b
}

// envList splits a comma-separated variable.
func envList(key string) []string {
	raw := env(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func s3FromEnv() publish.S3Config {
	return publish.S3Config{
		Endpoint:  env("S3_ENDPOINT", ""),
		Region:    env("S3_REGION", ""),
		AccessKey: env("S3_ACCESS_KEY", ""),
		SecretKey: env("S3_SECRET_KEY", ""),
		Bucket:    env("S3_BUCKET", ""),
		KeyPrefix: env("S3_KEY_PREFIX", ""),
		UseSSL:    envBool("S3_SECURE"),
	}
}
