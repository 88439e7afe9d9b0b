/*
Unauthenticated lookups used during sign-in: resolving an account DID to its DID document (and from there its PDS endpoint) via the public PLC directory, and fetching the account's public profile from the AppView API.
*/
package lookup
