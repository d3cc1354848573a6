// Package rendercache caches computed values together with their validity metadata
// and composes that metadata through trees of computations.
//
// Components:
//   - Metadata: max-age (seconds, Permanent, or 0 = uncacheable), tags, contexts.
//     Merge takes the stricter max-age and the union of tags and contexts.
//   - Store[V]: Get/Set/InvalidateTags over a byte Provider, a Codec[V] and a TagStore.
//   - Node[V]: a computation with its own metadata and children. Children without
//     explicit keys bubble their metadata up; keyed children are isolated.
//   - Renderer[V]: renders a Node tree, serving keyed nodes from the Store.
//
// Keys:
//
//	entry:<ns>:<key>   - stored entries
//	tag:<ns>:<tag>     - tag counters (tagstore.Redis)
//
// Invalidation bumps a per-tag counter; entries carry the counters observed when
// written and are rejected on read once any of them moved. Nothing is scanned.
//
//	obs, _ := store.SnapshotTags(ctx, md.Tags()) // before computing
//	v := compute()
//	_ = store.SetWithVersions(ctx, key, v, md, obs) // dropped if a tag moved
package rendercache
