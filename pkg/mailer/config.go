package mailer

// Config holds email transport configuration. The Postmark tokens are
// optional so development environments can run on the filesystem sender.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	ReplyToEmail         string `env:"REPLY_TO_EMAIL,required"`
	DevSpoolDir          string `env:"MAIL_DEV_SPOOL_DIR" envDefault:"./tmp/outbox"`
}
