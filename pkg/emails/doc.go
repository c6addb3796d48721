// Package emails exposes read paths over the authorized-email catalog
// and the per-admin delegation table. Catalog membership and delegations
// are provisioned out of band; this service never writes either table.
package emails
