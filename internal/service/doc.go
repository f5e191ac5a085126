// Package service executes a whole verascan run.
//
// Overview
// Run validates the configuration, overlays the credentials and proxies on
// the process environment and hands over to a Service. The Service owns the
// process runner, the platform API client and the publishers of output files.
//
// Data flow:
//
//	Run ---> Validate ---> env.Acquire ---> Service.Do
//	                                            |
//	  packager.Package (folder: CLI package, artifact: list)
//	                                            |
//	  prescan.Resolve (teams, business unit, application, collection, agent)
//	                                            |
//	           pipeline                         |               platform
//	  packager.PolicyFile                       |          scan.Platform (retry)
//	  scan.Orchestrator: one process per target + agent scan
//	                                            |
//	  publish.All ---> aggregate.Aggregate ---> report.Finish
//
// Invariants:
//   - Failures before the scans start abort the run with an ExitError.
//   - Scan failures never abort the others, they are aggregated.
//   - The agent token is expired on every path after it was issued.
//   - Publishing failures are logged and never change the verdict.
//   - override_failure turns every exit code into 0.
//
// internal/service/service_test.go shows a complete run against the
// in-memory platform API.
package service
