package mirror

import (
	"github.com/zalando/hubmirror/eskip"
	"github.com/zalando/hubmirror/filters"
	"github.com/zalando/hubmirror/filters/builtin"
	"github.com/zalando/hubmirror/filters/htmlrewrite"
	"github.com/zalando/hubmirror/rewrite"
)

const (
	MainRouteID       = "github_main"
	AssetsRouteID     = "github_assets"
	AvatarsRouteID    = "github_avatars"
	RawRouteID        = "github_raw"
	CamoRouteID       = "github_camo"
	CodeloadRouteID   = "github_codeload"
	ReleasesRouteID   = "github_releases"
	UserImagesRouteID = "github_userImages"
	BlackholeRouteID  = "github_blackhole"
	RobotsRouteID     = "robots"

	robotsPath = "/robots.txt"
	robotsTxt  = "User-agent: *\nDisallow: /"
)

// FilterRegistry returns the filters used by the mirror routes. The
// rewrite options apply to the HTML documents of the home domain.
func FilterRegistry(o rewrite.Options) filters.Registry {
	r := builtin.MakeRegistry()
	r.Register(htmlrewrite.New(o))
	return r
}

func filter(name string, args ...any) *eskip.Filter {
	return &eskip.Filter{Name: name, Args: args}
}

func anyArgs(s []string) []any {
	a := make([]any, len(s))
	for i := range s {
		a[i] = s[i]
	}

	return a
}

// filters applied on every mirrored upstream
func commonFilters() []*eskip.Filter {
	return []*eskip.Filter{
		filter(filters.SetRequestHeaderName, "Referer", GitHub),
		filter(filters.DropRequestHeaderName, "Origin"),
		filter(filters.DropResponseHeaderName, "Accept-Ranges"),
		filter(filters.DropResponseHeaderName, "Content-Security-Policy"),
		filter(filters.DropResponseHeaderName, "Strict-Transport-Security"),
	}
}

// The response filters run in reverse order, so the body is decompressed
// before it is rewritten.
func (d *Domains) mainFilters() []*eskip.Filter {
	return append(
		commonFilters(),
		filter(filters.SetRequestHeaderName, "Accept-Encoding", "identity"),
		filter(filters.StripCookieDomainName, GitHubCookies),
		filter(
			filters.RewriteHeaderPrefixName,
			"Location",
			GitHub, d.Home.Value,
			Raw, d.Raw.Value,
			Codeload, d.Codeload.Value,
			Releases, d.Releases.Value,
		),
		filter(filters.RewriteHeaderPrefixName, "X-Pjax-Url", GitHub, d.Home.Value),
		filter(filters.HTMLRewriteName, anyArgs(d.Replacements())...),
		filter(filters.DecompressName),
	)
}

func mirrorRoute(id string, domain Domain, backend string, f []*eskip.Filter) *eskip.Route {
	return &eskip.Route{
		Id:      id,
		Hosts:   []string{domain.Authority()},
		Filters: f,
		Backend: backend,
	}
}

// Routes returns the route definitions of the mirror. It returns no
// routes when the mirror is not configured.
func (d *Domains) Routes() []*eskip.Route {
	if !d.Configured() {
		return nil
	}

	blackhole := []*eskip.Filter{filter(filters.StatusName, 204)}
	return []*eskip.Route{
		mirrorRoute(MainRouteID, d.Home, GitHub, d.mainFilters()),
		mirrorRoute(AssetsRouteID, d.Assets, GitHubAssets, commonFilters()),
		mirrorRoute(AvatarsRouteID, d.Avatars, Avatars, commonFilters()),
		mirrorRoute(RawRouteID, d.Raw, Raw, commonFilters()),
		mirrorRoute(CamoRouteID, d.Camo, Camo, commonFilters()),
		mirrorRoute(CodeloadRouteID, d.Codeload, Codeload, commonFilters()),
		mirrorRoute(ReleasesRouteID, d.Releases, Releases, commonFilters()),
		mirrorRoute(UserImagesRouteID, d.UserImages, UserImages, commonFilters()),
		{
			Id:      BlackholeRouteID,
			Hosts:   []string{d.Blackhole.Authority()},
			Filters: blackhole,
			Shunt:   true,
		},

		// the blackhole takes precedence over robots.txt
		{
			Id:      BlackholeRouteID + "_robots",
			Hosts:   []string{d.Blackhole.Authority()},
			Path:    robotsPath,
			Filters: blackhole,
			Shunt:   true,
		},
		{
			Id:    RobotsRouteID,
			Path:  robotsPath,
			Shunt: true,
			Filters: []*eskip.Filter{
				filter(filters.InlineContentName, robotsTxt, "text/plain; charset=utf-8"),
			},
		},
	}
}
