/*
Package mirror defines the routes of a GitHub mirror.

The mirror serves every upstream site under its own configured domain:

	home          https://github.com
	assets        https://github.githubassets.com
	avatars       https://avatars.githubusercontent.com
	raw           https://raw.githubusercontent.com
	camo          https://camo.githubusercontent.com
	codeload      https://codeload.github.com
	releases      https://github-releases.githubusercontent.com
	user images   https://user-images.githubusercontent.com

Requests to the blackhole domain are answered with 204 No Content, and
/robots.txt disallows crawling on every other domain. The HTML pages of the
home domain are rewritten, so that the links in the tag attributes point
to the mirror domains, and the API and the telemetry collector point to
the blackhole.

The domains are validated in a fixed order. When one of them is missing or
is not an absolute URL, the problem is logged and the mirror is disabled:
it provides no routes.
*/
package mirror
