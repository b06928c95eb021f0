package simstats

import (
	"context"
	"fmt"
	"strings"

	"simstats-backend/internal/browser"
	"simstats-backend/internal/components/telemetry"
	"simstats-backend/lib/htmlutil"

	"go.opentelemetry.io/otel/attribute"
)

const (
	report_login_entry        = "login.entry"
	report_login_resolve_link = "login.resolve-link"
	report_login_submit_form  = "login.submit-form"
	report_login_ready        = "login.ready"
)

// ResolveLoginLink returns the single anchor whose decoded href starts with
// rule.Prefix and contains rule.Contains. Anchors that point to the same url
// are one candidate.
func ResolveLoginLink(anchors []htmlutil.Anchor, rule LoginLink) (htmlutil.Anchor, error) {
	var match htmlutil.Anchor
	found := false
	for _, a := range anchors {
		if !strings.HasPrefix(a.Href, rule.Prefix) || !strings.Contains(a.Href, rule.Contains) {
			continue
		}
		if !found {
			match = a
			found = true
			continue
		}
		if a.Href != match.Href {
			return htmlutil.Anchor{}, fmt.Errorf(
				"%w: %s and %s",
				ErrAmbiguousLoginLink, match.Href, a.Href,
			)
		}
	}
	if !found {
		return htmlutil.Anchor{}, ErrNoLoginLinkFound
	}
	return match, nil
}

type loginDriver struct {
	provider ProviderConfig
	creds    Credentials
	page     browser.Page
	tel      telemetry.API
	state    State
}

func (d *loginDriver) fail(reportId, selector string, err error) error {
	stepErr := &StepError{
		Provider: d.provider.ID,
		State:    d.state,
		Selector: selector,
		Err:      err,
	}
	d.tel.ReportBroken(reportId, stepErr)
	return stepErr
}

func (d *loginDriver) enter(state State) {
	d.state = state
	d.tel.ReportDebug("login state", d.provider.ID, string(state))
}

// Login drives page from the provider's entry url to its authenticated landing
// page, no step is retried.
func Login(ctx context.Context, page browser.Page, provider ProviderConfig, creds Credentials, tel telemetry.API) error {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()
	span.SetAttributes(attribute.String("provider", provider.ID))

	d := &loginDriver{
		provider: provider,
		creds:    creds,
		page:     page,
		tel:      tel,
	}
	err := d.run(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (d *loginDriver) run(ctx context.Context) error {
	p := d.provider

	d.enter(StateAtEntryPage)
	err := d.page.Navigate(ctx, p.EntryURL)
	if err != nil {
		return d.fail(report_login_entry, "", fmt.Errorf("navigate %s: %w", p.EntryURL, err))
	}

	switch {
	case p.LoginLink != nil:
		anchors, err := d.page.Anchors(ctx)
		if err != nil {
			return d.fail(report_login_resolve_link, "a", err)
		}
		link, err := ResolveLoginLink(anchors, *p.LoginLink)
		if err != nil {
			return d.fail(report_login_resolve_link, "a", err)
		}
		d.enter(StateLoginLinkLocated)
		err = d.page.ClickAnchor(ctx, link)
		if err != nil {
			return d.fail(report_login_resolve_link, link.Href, err)
		}
	case p.LoginButton != "":
		d.enter(StateLoginLinkLocated)
		err = d.page.ClickAndWait(ctx, p.LoginButton)
		if err != nil {
			return d.fail(report_login_resolve_link, p.LoginButton, err)
		}
	}

	d.enter(StateAtLoginForm)
	for i, step := range p.FormSteps {
		for _, field := range step.Fields {
			err = d.page.WaitReady(ctx, field.Selector)
			if err != nil {
				return d.fail(report_login_submit_form, field.Selector, err)
			}
			err = d.page.Type(ctx, field.Selector, d.creds.value(field.Value))
			if err != nil {
				return d.fail(report_login_submit_form, field.Selector, err)
			}
		}
		err = d.page.ClickAndWait(ctx, step.Submit)
		if err != nil {
			return d.fail(report_login_submit_form, step.Submit, err)
		}

		if i < len(p.FormSteps)-1 {
			d.enter(StateIdentifierSubmitted)
			continue
		}
		d.enter(StateSecretSubmitted)
	}

	for _, selector := range p.Ready {
		err = d.page.WaitReady(ctx, selector)
		if err != nil {
			return d.fail(report_login_ready, selector, err)
		}
	}
	d.enter(StateAuthenticated)
	return nil
}
