// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

/*
Package api provides the admin HTTP API for Hivekeeper.

The API replaces the web forms operators use to manage a deployment fleet.
Every route under /api/v1 requires a bearer JWT signed with the configured
secret; /healthz and /metrics are unauthenticated.

Routes:

	GET    /healthz
	GET    /metrics

	GET    /api/v1/plugins/{family}             list service or notification plugins
	POST   /api/v1/plugins/{family}             install from a multipart "file" upload
	GET    /api/v1/plugins/{family}/{name}
	PUT    /api/v1/plugins/{family}/{name}      update from a multipart upload
	DELETE /api/v1/plugins/{family}/{name}

	GET    /api/v1/rules[?service=NAME]
	POST   /api/v1/rules
	GET    /api/v1/rules/{id}
	DELETE /api/v1/rules/{id}

	GET    /api/v1/profiles
	POST   /api/v1/profiles
	GET    /api/v1/profiles/{id}
	DELETE /api/v1/profiles/{id}
	PUT    /api/v1/profiles/{id}/services/{service}
	DELETE /api/v1/profiles/{id}/services/{service}

	GET    /api/v1/deployments
	POST   /api/v1/deployments                  returns the sensor key material once
	GET    /api/v1/deployments/{id}
	DELETE /api/v1/deployments/{id}
	GET    /api/v1/deployments/{id}/self-reports

	GET    /api/v1/reports/{service}/{type}?deployment=ID[&arg=value...]

Responses use the APIResponse envelope. Plugin loader failures return 422
with error_code syntax_invalid, capability_missing or import_failure.
*/
package api
