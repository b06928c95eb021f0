// Package simstats drives a provider portal through login and extraction, then
// persists the normalized usage figures keyed by calendar day.
package simstats

import (
	"fmt"
)

type Unit string

const (
	GB Unit = "GB"
	MB Unit = "MB"
	KB Unit = "KB"
)

// toMb converts a value in u into megabytes.
func (u Unit) toMb(value float64) (float64, error) {
	switch u {
	case GB:
		return value * 1000, nil
	case MB:
		return value, nil
	case KB:
		return value / 1000, nil
	}
	return 0, fmt.Errorf("unknown unit %q", u)
}

// LoginLink picks the login affordance out of every anchor on the entry page.
type LoginLink struct {
	Prefix   string
	Contains string
}

type Credential int

const (
	CredentialID Credential = iota
	CredentialSecret
)

type FormField struct {
	Selector string
	Value    Credential
}

// FormStep fills in its fields and submits, the next step only begins once the
// navigation triggered by Submit has finished.
type FormStep struct {
	Fields []FormField
	Submit string
}

// DetailStep reaches a secondary page either by clicking Click or by navigating
// to URL, then waits for Ready.
type DetailStep struct {
	Click string
	URL   string
	Ready string
}

type Metric struct {
	Selector string
	Unit     Unit
}

type ProviderConfig struct {
	ID string
	// Namespace is the root of the provider's records in the store.
	Namespace string
	// AggregateKey is the provider's key in the latest stats payload.
	AggregateKey string
	EntryURL     string
	// URLFilter is the substring every request made by the browser must contain.
	URLFilter string

	// at most one of LoginLink and LoginButton is set, when neither is the
	// entry url is the login form itself.
	LoginLink   *LoginLink
	LoginButton string

	FormSteps []FormStep
	Ready     []string
	Details   []DetailStep

	Month Metric
	Day   Metric
}

func (p ProviderConfig) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("provider: id is empty")
	}
	if p.Namespace == "" || p.AggregateKey == "" {
		return fmt.Errorf("provider %s: namespace and aggregate key are required", p.ID)
	}
	if p.EntryURL == "" {
		return fmt.Errorf("provider %s: entry url is empty", p.ID)
	}
	if p.LoginLink != nil && p.LoginButton != "" {
		return fmt.Errorf("provider %s: both a login link and a login button are set", p.ID)
	}
	if len(p.FormSteps) == 0 {
		return fmt.Errorf("provider %s: no login form steps", p.ID)
	}
	for i, step := range p.FormSteps {
		if step.Submit == "" {
			return fmt.Errorf("provider %s: form step %d has no submit selector", p.ID, i)
		}
	}
	for i, step := range p.Details {
		if (step.Click == "") == (step.URL == "") {
			return fmt.Errorf("provider %s: detail step %d must set exactly one of click and url", p.ID, i)
		}
		if step.Ready == "" {
			return fmt.Errorf("provider %s: detail step %d has no ready selector", p.ID, i)
		}
	}
	for _, m := range []Metric{p.Month, p.Day} {
		if m.Selector == "" {
			return fmt.Errorf("provider %s: metric selector is empty", p.ID)
		}
		if _, err := m.Unit.toMb(0); err != nil {
			return fmt.Errorf("provider %s: %w", p.ID, err)
		}
	}
	return nil
}

// Credentials are the portal login of a single provider.
type Credentials struct {
	ID   string `json:"id"`
	Pass string `json:"pass"`
}

func (c Credentials) value(cred Credential) string {
	if cred == CredentialSecret {
		return c.Pass
	}
	return c.ID
}
