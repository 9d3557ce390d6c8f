package http

type Config struct {
	Port         uint   `mapstructure:"port"`
	WebhookToken string `mapstructure:"webhook_token"`
}
