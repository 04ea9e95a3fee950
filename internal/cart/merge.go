package cart

// Merge folds anon into auth by variant key. Lines already in auth keep their
// position and gain the anonymous quantity; new lines are appended in anon order.
// Neither input is modified.
func Merge(auth, anon []Item) []Item {
	merged := make([]Item, 0, len(auth)+len(anon))
	index := make(map[string]int, len(auth)+len(anon))
	for _, item := range auth {
		key := item.Key()
		if idx, ok := index[key]; ok {
			merged[idx].Quantity += item.Quantity
			continue
		}
		item.VariantKey = key
		index[key] = len(merged)
		merged = append(merged, item)
	}
	for _, item := range anon {
		key := item.Key()
		if idx, ok := index[key]; ok {
			merged[idx].Quantity += item.Quantity
			continue
		}
		item.VariantKey = key
		index[key] = len(merged)
		merged = append(merged, item)
	}
	return merged
}
