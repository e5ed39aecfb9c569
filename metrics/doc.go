/*
Package metrics implements collection of the proxy performance metrics
with the Prometheus client library:

https://github.com/prometheus/client_golang

The collected metrics include the time of looking up routes, the time
waiting for the response from the backends, the total time of serving a
request, the number of backend and streaming errors, and the counters
reported by the filters, e.g. the bytes and replacements of the HTML
rewrite.

The metrics are exposed by the support listener, on the /metrics path.
*/
package metrics
