/*
Package health provides internal readiness probes for the intake engine.

Three probes back the service's readiness surface: the object store's blob
directory is writable, the bbolt metadata index is openable, and the AML
reconstruction model is loaded. The model probe is informational only —
an unloaded model degrades the AML scanner to skip mode rather than
failing readiness.

Probes implement the Checker interface (Check, Type) and report a Result;
callers register results with pkg/metrics's health checker to expose them
on the service's health endpoint.
*/
package health
