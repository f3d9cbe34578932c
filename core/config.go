package core

import (
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type (
	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	BillingConfig struct {
		DefaultMonthlyFee decimal.Decimal
		DueDay            int
		MonthsAhead       int
		Location          *time.Location // calendar used for periods and due dates
	}

	CommsConfig struct {
		ThrottleWindow time.Duration
		SendingTimeout time.Duration
		AutosendEmail  bool
		AutosendBatch  int
	}

	EmailConfig struct {
		Backend        string // console | smtp | sendgrid
		SendgridApiKey string
		SMTPHost       string
		SMTPPort       int
		SMTPUser       string
		SMTPPassword   string
		SMTPTimeout    time.Duration
		ReplyTo        string
	}

	SMSConfig struct {
		Provider             string // console | generic | twilio
		SenderID             string
		GenericBaseURL       string
		GenericApiKey        string
		TwilioAccountSID     string
		TwilioAuthToken      string
		TwilioFromNumber     string
		DefaultCountryPrefix string
	}

	MidtransConfig struct {
		ServerKey  string
		Production bool
	}

	SchedulerConfig struct {
		StateFile        string
		OutboxInterval   time.Duration
		OutboxBatch      int
		DuesScanInterval time.Duration
	}

	DuesConfig struct {
		EmailTemplate string
		SMSTemplate   string
		EmailThrottle time.Duration
	}

	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		AppName          string
		WorkDir          string
		RollbarToken     string
		defaultFromEmail string

		Server    ServerConfig
		Database  DatabaseConfig
		Billing   BillingConfig
		Comms     CommsConfig
		Email     EmailConfig
		SMS       SMSConfig
		Midtrans  MidtransConfig
		Scheduler SchedulerConfig
		Dues      DuesConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DefaultFromEmail parses the configured sender; an unparsable value is used as a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	return *addr
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	// general
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "School Web")
	v.SetDefault("defaultFromEmail", "School Web <noreply@localhost>")
	v.SetDefault("rollbarToken", "")

	// server
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", "localhost:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)

	// database
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "school_web")
	v.SetDefault("database.user", "school_web")
	v.SetDefault("database.password", "school_web")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	// billing
	v.SetDefault("billing.defaultMonthlyFee", "2000")
	v.SetDefault("billing.dueDay", 10)
	v.SetDefault("billing.monthsAhead", 1)
	v.SetDefault("billing.timezone", "UTC")

	// outbox
	v.SetDefault("comms.throttleWindow", 10*time.Minute)
	v.SetDefault("comms.sendingTimeout", 15*time.Minute)
	v.SetDefault("comms.autosendEmail", false)
	v.SetDefault("comms.autosendBatch", 20)

	// transports
	v.SetDefault("email.backend", "console")
	v.SetDefault("email.smtpTimeout", 10*time.Second)
	v.SetDefault("email.sendgridApiKey", "")
	v.SetDefault("email.smtpHost", "localhost")
	v.SetDefault("email.smtpPort", 25)
	v.SetDefault("email.smtpUser", "")
	v.SetDefault("email.smtpPassword", "")
	v.SetDefault("email.replyTo", "")
	v.SetDefault("sms.provider", "console")
	v.SetDefault("sms.senderID", "SCHOOL")
	v.SetDefault("sms.genericBaseURL", "")
	v.SetDefault("sms.genericApiKey", "")
	v.SetDefault("sms.twilioAccountSID", "")
	v.SetDefault("sms.twilioAuthToken", "")
	v.SetDefault("sms.twilioFromNumber", "")
	v.SetDefault("sms.defaultCountryPrefix", "+88")

	// integrations
	v.SetDefault("midtrans.serverKey", "")
	v.SetDefault("midtrans.production", false)

	// scheduler
	v.SetDefault("scheduler.stateFile", "scheduler.db")
	v.SetDefault("scheduler.outboxInterval", time.Minute)
	v.SetDefault("scheduler.outboxBatch", 100)
	v.SetDefault("scheduler.duesScanInterval", 60*time.Minute)

	// dues notices
	v.SetDefault("dues.emailTemplate", "dues_notice_email")
	v.SetDefault("dues.smsTemplate", "dues_notice")
	v.SetDefault("dues.emailThrottle", 60*time.Minute)
}

// NewConfig loads the configuration from defaults, `config/.env.<env>` (if it exists) and the environment.
// Environment variables are prefixed with the env name, e.g. `PROD_DATABASE_HOST`.
func NewConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	fee, err := decimal.NewFromString(strings.TrimSpace(v.GetString("billing.defaultMonthlyFee")))
	if err != nil {
		return nil, errors.Wrap(err, "parsing billing.defaultMonthlyFee")
	}
	if fee.IsNegative() {
		return nil, errors.Errorf("billing.defaultMonthlyFee must not be negative (got %s)", fee)
	}
	dueDay := v.GetInt("billing.dueDay")
	if dueDay < 1 || dueDay > 28 {
		return nil, errors.Errorf("billing.dueDay must be between 1 and 28 (got %d)", dueDay)
	}
	loc, err := time.LoadLocation(strings.TrimSpace(v.GetString("billing.timezone")))
	if err != nil {
		return nil, errors.Wrap(err, "loading billing.timezone")
	}

	conf := &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         env == "TEST",
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		WorkDir:          workDir,
		RollbarToken:     v.GetString("rollbarToken"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Billing: BillingConfig{
			DefaultMonthlyFee: fee,
			DueDay:            dueDay,
			MonthsAhead:       v.GetInt("billing.monthsAhead"),
			Location:          loc,
		},
		Comms: CommsConfig{
			ThrottleWindow: v.GetDuration("comms.throttleWindow"),
			SendingTimeout: v.GetDuration("comms.sendingTimeout"),
			AutosendEmail:  v.GetBool("comms.autosendEmail"),
			AutosendBatch:  v.GetInt("comms.autosendBatch"),
		},
		Email: EmailConfig{
			Backend:        strings.ToLower(v.GetString("email.backend")),
			SendgridApiKey: v.GetString("email.sendgridApiKey"),
			SMTPHost:       v.GetString("email.smtpHost"),
			SMTPPort:       v.GetInt("email.smtpPort"),
			SMTPUser:       v.GetString("email.smtpUser"),
			SMTPPassword:   v.GetString("email.smtpPassword"),
			SMTPTimeout:    v.GetDuration("email.smtpTimeout"),
			ReplyTo:        v.GetString("email.replyTo"),
		},
		SMS: SMSConfig{
			Provider:             strings.ToLower(v.GetString("sms.provider")),
			SenderID:             v.GetString("sms.senderID"),
			GenericBaseURL:       v.GetString("sms.genericBaseURL"),
			GenericApiKey:        v.GetString("sms.genericApiKey"),
			TwilioAccountSID:     v.GetString("sms.twilioAccountSID"),
			TwilioAuthToken:      v.GetString("sms.twilioAuthToken"),
			TwilioFromNumber:     v.GetString("sms.twilioFromNumber"),
			DefaultCountryPrefix: v.GetString("sms.defaultCountryPrefix"),
		},
		Midtrans: MidtransConfig{
			ServerKey:  v.GetString("midtrans.serverKey"),
			Production: v.GetBool("midtrans.production"),
		},
		Scheduler: SchedulerConfig{
			StateFile:        v.GetString("scheduler.stateFile"),
			OutboxInterval:   v.GetDuration("scheduler.outboxInterval"),
			OutboxBatch:      v.GetInt("scheduler.outboxBatch"),
			DuesScanInterval: v.GetDuration("scheduler.duesScanInterval"),
		},
		Dues: DuesConfig{
			EmailTemplate: v.GetString("dues.emailTemplate"),
			SMSTemplate:   v.GetString("dues.smsTemplate"),
			EmailThrottle: v.GetDuration("dues.emailThrottle"),
		},
	}
	return conf, nil
}

// NewTestConfig returns the configuration used by tests: defaults only, no env lookups.
func NewTestConfig() *Config {
	return &Config{
		Debug:            true,
		TestMode:         true,
		Env:              "TEST",
		Build:            "test",
		AppName:          "School Web",
		defaultFromEmail: "School Web <noreply@localhost>",
		Server:           ServerConfig{Host: "localhost", Address: ":0", ShutdownTimeout: time.Second, DisableReqLogs: true},
		Billing:          BillingConfig{DefaultMonthlyFee: decimal.NewFromInt(2000), DueDay: 10, MonthsAhead: 1, Location: time.UTC},
		Comms:            CommsConfig{ThrottleWindow: 10 * time.Minute, SendingTimeout: 15 * time.Minute, AutosendBatch: 20},
		Email:            EmailConfig{Backend: "console", SMTPTimeout: time.Second},
		SMS:              SMSConfig{Provider: "console", SenderID: "SCHOOL", DefaultCountryPrefix: "+88"},
		Scheduler:        SchedulerConfig{OutboxInterval: time.Minute, OutboxBatch: 100, DuesScanInterval: time.Hour},
		Dues:             DuesConfig{EmailTemplate: "dues_notice_email", SMSTemplate: "dues_notice", EmailThrottle: time.Hour},
	}
}
