/*
Package intake implements the external-facing job surface: Submit,
Status, Result, Proof, and Cancel. It applies admission control (queue
depth and max input size) ahead of the registry and pipeline executor,
then hands accepted jobs straight to the executor's worker pool.
*/
package intake
