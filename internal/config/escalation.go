package config

import "time"

// EscalationConfig tunes the escalation ladder and the recipients behind
// each recipient class. Deadlines are measured from incident creation.
type EscalationConfig struct {
	Level1Deadline time.Duration `yaml:"level1_deadline"`
	Level2Deadline time.Duration `yaml:"level2_deadline"`
	Level3Deadline time.Duration `yaml:"level3_deadline"`
	Level4Deadline time.Duration `yaml:"level4_deadline"`

	AdminPhones      []string `yaml:"admin_phones"`
	AdminEmails      []string `yaml:"admin_emails"`
	AuthorityPhones  []string `yaml:"authority_phones"`
	AuthorityEmails  []string `yaml:"authority_emails"`
	DispatchPhones   []string `yaml:"dispatch_phones"`
	DispatchEndpoint string   `yaml:"dispatch_endpoint"`
}

func loadEscalationConfig() *EscalationConfig {
	return &EscalationConfig{
		Level1Deadline: getEnvAsDuration("ESCALATION_LEVEL1_DEADLINE", 2*time.Minute),
		Level2Deadline: getEnvAsDuration("ESCALATION_LEVEL2_DEADLINE", 5*time.Minute),
		Level3Deadline: getEnvAsDuration("ESCALATION_LEVEL3_DEADLINE", 10*time.Minute),
		Level4Deadline: getEnvAsDuration("ESCALATION_LEVEL4_DEADLINE", 15*time.Minute),

		AdminPhones:      getEnvAsSlice("ESCALATION_ADMIN_PHONES", []string{}),
		AdminEmails:      getEnvAsSlice("ESCALATION_ADMIN_EMAILS", []string{}),
		AuthorityPhones:  getEnvAsSlice("ESCALATION_AUTHORITY_PHONES", []string{}),
		AuthorityEmails:  getEnvAsSlice("ESCALATION_AUTHORITY_EMAILS", []string{}),
		DispatchPhones:   getEnvAsSlice("ESCALATION_DISPATCH_PHONES", []string{}),
		DispatchEndpoint: getEnv("ESCALATION_DISPATCH_ENDPOINT", ""),
	}
}

// Deadlines returns the ladder deadlines in level order.
func (e *EscalationConfig) Deadlines() []time.Duration {
	return []time.Duration{e.Level1Deadline, e.Level2Deadline, e.Level3Deadline, e.Level4Deadline}
}
