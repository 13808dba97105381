// Package workflow drives tasks through the pipeline stages under bounded
// concurrency lanes.
package workflow
