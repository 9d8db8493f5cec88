package lbvh

const (
	radixBits    = 8
	radixBuckets = 1 << radixBits
	radixPasses  = 4 // 32 bits / 8 bits per pass; covers the 30-bit Morton code with room to spare
)

// sortByCode returns perm, a permutation of [0, len(codes)) such that
// codes[perm[i]] <= codes[perm[i+1]] for every i. The sort is a parallel LSD
// radix sort: stable by construction, since within every digit pass elements
// are scattered in increasing shard and increasing original-index order. This
// keeps equal-code primitives in their input order, which the topology
// builder's index-based tie-break depends on.
func sortByCode(sched Scheduler, codes []uint32) ([]uint32, error) {
	n := len(codes)
	perm := make([]uint32, n)
	for i := range perm {
		perm[i] = uint32(i)
	}
	if n < 2 {
		return perm, nil
	}

	scratchPerm := make([]uint32, n)
	shards := int(shardCount(sched, n))
	if shards < 1 {
		shards = 1
	}

	// Per-shard, per-bucket histograms, reused across passes.
	hist := make([][radixBuckets]uint32, shards)

	for pass := 0; pass < radixPasses; pass++ {
		shift := uint(pass * radixBits)

		for s := range hist {
			hist[s] = [radixBuckets]uint32{}
		}

		err := sched.Run(uint32(shards), func(div WorkDivision) error {
			start, end := shardRange(n, shards, int(div.Idx))
			h := &hist[div.Idx]
			for i := start; i < end; i++ {
				digit := (codes[perm[i]] >> shift) & (radixBuckets - 1)
				h[digit]++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		// Sequential exclusive prefix sum, bucket-major then shard-minor, so
		// that the scatter below preserves both bucket order and the
		// original relative order of elements from different shards.
		var offset [][radixBuckets]uint32 = make([][radixBuckets]uint32, shards)
		var running uint32
		for bucket := 0; bucket < radixBuckets; bucket++ {
			for s := 0; s < shards; s++ {
				offset[s][bucket] = running
				running += hist[s][bucket]
			}
		}

		err = sched.Run(uint32(shards), func(div WorkDivision) error {
			start, end := shardRange(n, shards, int(div.Idx))
			cursor := offset[div.Idx]
			for i := start; i < end; i++ {
				idx := perm[i]
				digit := (codes[idx] >> shift) & (radixBuckets - 1)
				scratchPerm[cursor[digit]] = idx
				cursor[digit]++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		perm, scratchPerm = scratchPerm, perm
	}

	return perm, nil
}

// shardRange divides [0, n) into `shards` contiguous, roughly equal ranges
// and returns the one owned by shard index idx.
func shardRange(n, shards, idx int) (start, end int) {
	chunk := (n + shards - 1) / shards
	start = idx * chunk
	if start > n {
		start = n
	}
	end = start + chunk
	if end > n {
		end = n
	}
	return start, end
}
