/*
Package logging implements application log instrumentation and Apache
combined access log.

# Application Log

The application log uses the logrus package:

https://github.com/sirupsen/logrus

To send messages to the application log, import this package and use its
methods. Example:

	import log "github.com/sirupsen/logrus"

	func doSomething() {
		log.Errorf("nothing to do")
	}

During startup initialization, it is possible to redirect the log output
from the default /dev/stderr to another file, to set a common prefix for
each log entry, to set the level and to switch to JSON output.

# Access Log

The access log prints HTTP access information in the Apache combined
access log format, extended with the duration of the request in
milliseconds and the requested host. It is printed by the proxy, one line
per request.
*/
package logging
