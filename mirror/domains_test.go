package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/hubmirror/logging/loggingtest"
	"github.com/zalando/hubmirror/rewrite"
)

func testOptions() Options {
	return Options{
		HomeDomain:       "http://mirror.test",
		BlackholeDomain:  "http://blackhole.mirror.test:8080",
		AssetsDomain:     "http://assets.mirror.test",
		AvatarsDomain:    "http://avatars.mirror.test",
		RawDomain:        "http://raw.mirror.test",
		CamoDomain:       "http://camo.mirror.test",
		CodeloadDomain:   "http://codeload.mirror.test",
		ReleasesDomain:   "http://releases.mirror.test",
		UserImagesDomain: "http://user-images.mirror.test",
		ObjectsDomain:    "http://objects.mirror.test",
	}
}

func TestNewDomains(t *testing.T) {
	l := loggingtest.New()
	d := NewDomains(testOptions(), l)

	require.True(t, d.Configured())
	assert.Zero(t, l.Count("incorrectly configured"))
	assert.Equal(t, "http://mirror.test", d.Home.Value)
	assert.Equal(t, "mirror.test", d.Home.Authority())
	assert.Equal(t, "blackhole.mirror.test:8080", d.Blackhole.Authority())
	assert.Equal(t, "blackhole.mirror.test", d.Blackhole.Host())
}

func TestInvalidDomains(t *testing.T) {
	for _, tt := range []struct {
		name     string
		options  func(*Options)
		expected string
	}{{
		name:     "missing home",
		options:  func(o *Options) { o.HomeDomain = "" },
		expected: "HomeDomain",
	}, {
		name:     "relative blackhole",
		options:  func(o *Options) { o.BlackholeDomain = "blackhole.mirror.test" },
		expected: "BlackholeDomain",
	}, {
		name:     "invalid camo",
		options:  func(o *Options) { o.CamoDomain = "http://[::1" },
		expected: "CamoDomain",
	}, {
		name:     "missing objects",
		options:  func(o *Options) { o.ObjectsDomain = "" },
		expected: "ObjectsDomain",
	}, {
		name: "first invalid reported",
		options: func(o *Options) {
			o.RawDomain = ""
			o.ReleasesDomain = ""
		},
		expected: "RawDomain",
	}} {
		t.Run(tt.name, func(t *testing.T) {
			o := testOptions()
			tt.options(&o)

			l := loggingtest.New()
			d := NewDomains(o, l)

			assert.False(t, d.Configured())
			assert.Equal(t, 1, l.Count("incorrectly configured"))
			assert.Equal(t, 1, l.Count(tt.expected+" is incorrectly configured."))
			assert.Nil(t, d.Routes())
			assert.Nil(t, d.Replacements())
		})
	}
}

func TestNilDomains(t *testing.T) {
	var d *Domains
	assert.False(t, d.Configured())
	assert.Nil(t, d.Routes())
}

func TestReplacements(t *testing.T) {
	d := NewDomains(testOptions(), loggingtest.New())
	r := d.Replacements()

	assert.Equal(t, []string{
		"https://github.com", "http://mirror.test",
		"https://api.github.com", "http://blackhole.mirror.test:8080",
		"https://github.githubassets.com", "http://assets.mirror.test",
		"https://avatars.githubusercontent.com", "http://avatars.mirror.test",
		"https://camo.githubusercontent.com", "http://camo.mirror.test",
		"https://user-images.githubusercontent.com", "http://user-images.mirror.test",
		"collector.githubapp.com", "blackhole.mirror.test:8080",
	}, r)

	ds, err := rewrite.ParseDirectives(r...)
	require.NoError(t, err)
	assert.Equal(t, 7, ds.Len())
}
