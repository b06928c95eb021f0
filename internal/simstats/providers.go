package simstats

const (
	ProviderDcm     = "dcm"
	ProviderNuro    = "nuro"
	ProviderZeroSim = "zerosim"
)

var Dcm = ProviderConfig{
	ID:           ProviderDcm,
	Namespace:    "dcm-sim-usage",
	AggregateKey: "month_used_dcm",
	EntryURL:     "https://www.nttdocomo.co.jp/mydocomo/data",
	URLFilter:    "docomo",
	LoginLink: &LoginLink{
		Prefix:   "https://www.nttdocomo.co.jp/auth/cgi",
		Contains: "https://www.nttdocomo.co.jp/mydocomo/data",
	},
	FormSteps: []FormStep{
		{
			Fields: []FormField{{Selector: `input[id="Di_Uid"]`, Value: CredentialID}},
			Submit: "input.button_submit.nextaction",
		},
		{
			Fields: []FormField{{Selector: `input[id="Di_Pass"]`, Value: CredentialSecret}},
			Submit: "input.button_submit.nextaction",
		},
	},
	Ready: []string{
		"section#mydcm_data_data",
		"section#mydcm_data_3day",
	},
	Month: Metric{
		Selector: "section#mydcm_data_data div.in-data-use span.card-t-number",
		Unit:     GB,
	},
	Day: Metric{
		Selector: "section#mydcm_data_3day div#mydcm_data_3day-03 dl.mydcm_data_3day-03-02 span.card-t-ssnumber",
		Unit:     GB,
	},
}

const nuroUsageBlock = "div#main div.container section div.indexBox div.float div.block.right.zyokyo ul.zyokyoBlock"

var Nuro = ProviderConfig{
	ID:           ProviderNuro,
	Namespace:    "nuro-sim-usage",
	AggregateKey: "month_used_nuro",
	EntryURL:     "https://mobile.nuro.jp/mobile_contract/u/login/",
	URLFilter:    "nuro",
	FormSteps: []FormStep{
		{
			Fields: []FormField{
				{Selector: "input#simNumber", Value: CredentialID},
				{Selector: "input#simPassword", Value: CredentialSecret},
			},
			Submit: "input#simSubmit",
		},
	},
	Ready: []string{"div#main div.container section div.indexBox"},
	Month: Metric{
		Selector: nuroUsageBlock + " li ul li p.data span.yen",
		Unit:     MB,
	},
	Day: Metric{
		Selector: nuroUsageBlock + " li:nth-of-type(2) div.siyou:nth-of-type(2) p.data span.yen",
		Unit:     MB,
	},
}

var ZeroSim = ProviderConfig{
	ID:           ProviderZeroSim,
	Namespace:    "zero-sim-usage",
	AggregateKey: "month_used_zero_sim",
	EntryURL:     "https://www.so-net.ne.jp/retail/u/",
	URLFilter:    "so-net",
	FormSteps: []FormStep{
		{
			Fields: []FormField{
				{Selector: "input#simNumber", Value: CredentialID},
				{Selector: "input#simPassword", Value: CredentialSecret},
			},
			Submit: "input#simSubmit",
		},
	},
	Ready: []string{`form[name="userUsageActionForm"] input#menuUseCondition`},
	Details: []DetailStep{
		{
			Click: `form[name="userUsageActionForm"] input#menuUseCondition`,
			Ready: "div.contents div.guideSignElem dl.useConditionDisplay",
		},
	},
	Month: Metric{
		Selector: "div.contents div.guideSignElem dl.useConditionDisplay dd:nth-of-type(1)",
		Unit:     MB,
	},
	Day: Metric{
		Selector: "div.contents div.guideSignElem dl.useConditionDisplay dd:nth-of-type(3)",
		Unit:     MB,
	},
}

// Providers returns every provider in the order they appear in the latest stats payload.
func Providers() []ProviderConfig {
	return []ProviderConfig{Dcm, Nuro, ZeroSim}
}

func FindProvider(providers []ProviderConfig, id string) (ProviderConfig, bool) {
	for _, p := range providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
