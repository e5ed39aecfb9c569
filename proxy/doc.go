/*
Package proxy implements the HTTP reverse proxy of the mirror, based on
the current routing table.

The proxy matches each incoming request to the routing table, and handles
it accordingly to the rules defined in the matched route.

# Proxy Mechanism

1. route matching:

The incoming request is matched to the routing table, implemented in
package routing. The result may be a route, which will be used for
forwarding or handling the request, or nil, in which case the proxy
responds with a configured http status code (defaults to 404).

2. upstream request augmentation:

In case of a matched route, the request handling method of all filters
in the route will be executed in the order they are defined. The filters
share a context object, that provides the in-memory representation of the
incoming request, the outgoing response writer and a free-form state bag.

Filters can break the filter chain, serving their own response object.
This will prevent the request from reaching the route endpoint. The
filters that are defined in the route after the one that broke the chain
will never handle the request.

3.a upstream request:

The incoming and augmented request is mapped to an outgoing request and
executed, addressing the backend of the current route, through the
circuit breaker of the backend host.

3.b shunt:

In case the route is a shunt, an empty response is created with default
404 status, unless a filter served the request.

4. downstream response augmentation:

The response handling method of all the filters processed in step 2 is
executed in reverse order. The filters may replace the response body,
e.g. with a streaming rewrite of the HTML documents.

5. response:

The response headers are sent to the client, and the body is streamed
with flushing after every read, so that the client receives the rewritten
chunks as soon as they are ready.

Backend errors are mapped to status codes: a failed connection to 502, an
open circuit breaker to 503, a timeout to 504 and a request canceled by
the client to 499.
*/
package proxy
