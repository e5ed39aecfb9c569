package mirror

import (
	"net/url"

	"github.com/zalando/hubmirror/logging"
)

// Upstream addresses.
const (
	GitHub        = "https://github.com"
	GitHubAPI     = "https://api.github.com"
	GitHubAssets  = "https://github.githubassets.com"
	Avatars       = "https://avatars.githubusercontent.com"
	Raw           = "https://raw.githubusercontent.com"
	Camo          = "https://camo.githubusercontent.com"
	Codeload      = "https://codeload.github.com"
	Releases      = "https://github-releases.githubusercontent.com"
	UserImages    = "https://user-images.githubusercontent.com"
	Collector     = "collector.githubapp.com"
	GitHubCookies = "github.com"
)

// Options contain the domains of the mirror, as absolute URLs, e.g.
// https://mirror.example.org.
type Options struct {
	HomeDomain       string `yaml:"home-domain"`
	BlackholeDomain  string `yaml:"blackhole-domain"`
	AssetsDomain     string `yaml:"assets-domain"`
	AvatarsDomain    string `yaml:"avatars-domain"`
	RawDomain        string `yaml:"raw-domain"`
	CamoDomain       string `yaml:"camo-domain"`
	CodeloadDomain   string `yaml:"codeload-domain"`
	ReleasesDomain   string `yaml:"releases-domain"`
	UserImagesDomain string `yaml:"user-images-domain"`
	ObjectsDomain    string `yaml:"objects-domain"`
}

// Domain is a validated mirror domain.
type Domain struct {

	// Value is the domain as configured. It replaces the upstream
	// address in the rewritten documents and headers.
	Value string

	URL *url.URL
}

// Domains hold the validated mirror domains.
type Domains struct {
	Home       Domain
	Blackhole  Domain
	Assets     Domain
	Avatars    Domain
	Raw        Domain
	Camo       Domain
	Codeload   Domain
	Releases   Domain
	UserImages Domain
	Objects    Domain

	configured bool
}

// Authority returns the host of the domain, including the port when it
// is set.
func (d Domain) Authority() string { return d.URL.Host }

// Host returns the host of the domain without the port.
func (d Domain) Host() string { return d.URL.Hostname() }

func parseDomain(value string) (Domain, bool) {
	if value == "" {
		return Domain{}, false
	}

	u, err := url.Parse(value)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return Domain{}, false
	}

	return Domain{Value: value, URL: u}, true
}

// NewDomains validates the configured domains. When a domain is invalid,
// it logs the first invalid one and returns domains that are not
// configured.
func NewDomains(o Options, l logging.Logger) *Domains {
	if l == nil {
		l = logging.New()
	}

	d := &Domains{}
	for _, v := range []struct {
		name  string
		value string
		field *Domain
	}{
		{"HomeDomain", o.HomeDomain, &d.Home},
		{"BlackholeDomain", o.BlackholeDomain, &d.Blackhole},
		{"AssetsDomain", o.AssetsDomain, &d.Assets},
		{"AvatarsDomain", o.AvatarsDomain, &d.Avatars},
		{"RawDomain", o.RawDomain, &d.Raw},
		{"CamoDomain", o.CamoDomain, &d.Camo},
		{"CodeloadDomain", o.CodeloadDomain, &d.Codeload},
		{"ReleasesDomain", o.ReleasesDomain, &d.Releases},
		{"UserImagesDomain", o.UserImagesDomain, &d.UserImages},
		{"ObjectsDomain", o.ObjectsDomain, &d.Objects},
	} {
		dv, ok := parseDomain(v.value)
		if !ok {
			l.Errorf("%s is incorrectly configured.", v.name)
			return &Domains{}
		}

		*v.field = dv
	}

	d.configured = true
	return d
}

// Configured tells whether every domain is valid.
func (d *Domains) Configured() bool {
	return d != nil && d.configured
}

// Replacements returns the upstream addresses and their mirror
// replacements in the HTML documents of the home domain, as alternating
// pattern and replacement strings. Earlier pairs take precedence.
func (d *Domains) Replacements() []string {
	if !d.Configured() {
		return nil
	}

	return []string{
		GitHub, d.Home.Value,
		GitHubAPI, d.Blackhole.Value,
		GitHubAssets, d.Assets.Value,
		Avatars, d.Avatars.Value,
		Camo, d.Camo.Value,
		UserImages, d.UserImages.Value,
		Collector, d.Blackhole.Authority(),
	}
}
