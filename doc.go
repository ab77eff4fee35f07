/*
Package ddns keeps a dynamic DNS record pointed at the public address of a cloud instance.

Usage will always start with [ddns.New],
which returns a [Reconciler] for one domain and its provider token.
By default the reconciler reads the instance's public IPv4 (and IPv6) from the local
instance metadata service and pushes changes to the DuckDNS update endpoint.
Additional options are listed in the docs for New.

[Reconciler.RunDaemon] checks the addresses on a fixed interval until its context is cancelled,
and [Reconciler.RunDDNS] performs a single check.
*/
package ddns
