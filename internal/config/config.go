package config

import "github.com/caarlos0/env/v11"

type Config struct {
	ListenAddr     string `env:"LISTEN_ADDR"      envDefault:":8080"`
	JWTSecret      string `env:"JWT_SECRET,required,notEmpty"`
	DBPath         string `env:"DB_PATH"          envDefault:"db.sqlite"`
	ForumAPIURL    string `env:"FORUM_API_URL,required,notEmpty"`
	ForumAPIToken  string `env:"FORUM_API_TOKEN"`
	SMTPHost       string `env:"SMTP_HOST,required,notEmpty"`
	SMTPPort       int    `env:"SMTP_PORT"        envDefault:"587"`
	SMTPUser       string `env:"SMTP_USER"`
	SMTPPassword   string `env:"SMTP_PASSWORD"`
	SMTPFrom       string `env:"SMTP_FROM,required,notEmpty"`
	DigestCronSpec string `env:"DIGEST_CRON_SPEC" envDefault:"0 * * * *"`
}

func LoadConfig() Config {
	var cfg Config
	env.Must(cfg, env.Parse(&cfg))
	return cfg
}
