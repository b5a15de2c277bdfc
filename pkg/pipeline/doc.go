/*
Package pipeline runs one job through the fixed stage list: admit, format,
ids, aml, persist, analyze, finalize. Stages execute in order; a fatal
stage failure short-circuits the remaining stages. Each stage runs under
its own deadline and polls the job's cancel signal cooperatively.

A fixed-size pool of workers drains a bounded task queue, grounded on the
same ticker/select worker-loop idiom used elsewhere in this codebase for
background processing loops.
*/
package pipeline
