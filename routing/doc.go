/*
Package routing implements matching of http requests to the set of mirror
routes.

# Request Evaluation

A route matches a request when the request host equals one of the hosts
of the route, and, when the route has a path condition, the request path
equals it. Hosts are compared case-insensitively, first with the port,
then without it. Routes without hosts match any host.

When multiple routes match, the most specific one is selected, in this
order:

1. host and path

2. path only

3. host only

4. neither host nor path (catch-all)

# Filters

The filters of a route are created from the filter specifications in the
registry passed in with the options. A route referencing an unknown filter,
or a filter with invalid arguments, is logged and skipped.

# Updates

The routing table can be replaced at runtime by calling Update. Requests
in flight keep using the table that they were matched against.
*/
package routing
