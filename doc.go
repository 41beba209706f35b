/*
Package blockstore keeps an in-memory set of blocked domain names and answers
whether a name, or any domain it is a subdomain of, is on the list.

Store

The Store is created empty and grows by loading line-oriented sources, one
domain per line. Loads are cumulative, entries are never removed. Lookups
match the queried name and then each parent domain down to the last label.
One Store is meant to be shared by everything in a process that needs it.

Sources

Sources provide the lines loaded into a store. Local files, HTTP(S) URLs and
in-memory lists are supported.

Resolvers and Listeners

The Blocklist resolver answers DNS queries for blocked names with NXDOMAIN and
forwards everything else to an upstream DNSClient. DNSListener serves DNS over
UDP or TCP, AdminListener exposes metrics and the store over HTTP.
*/
package blockstore
