/*
Package scanner implements the three pure verdict functions run against an
uploaded genomic file: format validation, intrusion-pattern detection, and
adversarial-machine-learning anomaly scoring.

Each scanner follows the same shape: scan(input) -> {passed, score, detail}.
None of the three touch the registry, the store, or any other stateful
component — they are pure functions over bytes, which is what makes them
safe to call from the pipeline executor without additional locking.
*/
package scanner
