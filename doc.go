/*
Package hubmirror provides a reverse proxy mirroring GitHub under
different host names.

The mirror maps the incoming requests to the GitHub hosts based on the
Host header. Every mirrored host has its own route, and every route has
its own filter chain transforming the requests and the responses. The
HTML documents of the main site are rewritten while they are streamed to
the client, so that the links, the images and the scripts that they
reference point to the mirror domains instead of the GitHub ones.

# Domains

The mirror is configured with ten absolute URLs:

	home-domain         https://github.com
	blackhole-domain    https://api.github.com and collector.githubapp.com
	assets-domain       https://github.githubassets.com
	avatars-domain      https://avatars.githubusercontent.com
	raw-domain          https://raw.githubusercontent.com
	camo-domain         https://camo.githubusercontent.com
	codeload-domain     https://codeload.github.com
	releases-domain     https://github-releases.githubusercontent.com
	user-images-domain  https://user-images.githubusercontent.com
	objects-domain      reserved

When any of them is missing or invalid, it is logged, and the mirror
serves no routes.

The blackhole domain answers every request with 204 No Content. Every
domain answers /robots.txt with a document disallowing the crawlers.

# Running

The hubmirror command starts the proxy:

	hubmirror \
		-home-domain https://hub.example.org \
		-blackhole-domain https://blackhole.example.org \
		...

The /metrics endpoint of the support listener serves the Prometheus
metrics of the proxy and of the HTML rewriting.

The htmlrewrite command applies the same rewriting to a document read
from the standard input:

	htmlrewrite -replace https://github.com=https://hub.example.org < in.html > out.html
*/
package hubmirror
