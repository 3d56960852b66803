package commit

import "hash/fnv"

// AdvisoryLockID derives the 32-bit lock identifier §4.4 specifies from
// proposalId, so every commit attempt for the same proposal — across
// processes, via Postgres advisory locks — serialises on the same
// integer. Built on the standard library (hash/fnv): this is an
// internal hashing detail, not a concern any pack library addresses.
func AdvisoryLockID(proposalID string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(proposalID))
	return int32(h.Sum32())
}
