package scene

// Diff is the keyed join between two scenes.
type Diff struct {
	Enter  []Key
	Update []Key
	Exit   []Key
}

// Reconcile joins prev and next by mark key. Enter and Update follow next's
// draw order, Exit follows prev's. Either scene may be nil.
func Reconcile(prev, next *Scene) Diff {
	var d Diff
	before := make(map[Key]bool)
	if prev != nil {
		for _, m := range prev.Marks {
			before[m.Key] = true
		}
	}
	after := make(map[Key]bool)
	if next != nil {
		for _, m := range next.Marks {
			after[m.Key] = true
			if before[m.Key] {
				d.Update = append(d.Update, m.Key)
			} else {
				d.Enter = append(d.Enter, m.Key)
			}
		}
	}
	if prev != nil {
		for _, m := range prev.Marks {
			if !after[m.Key] {
				d.Exit = append(d.Exit, m.Key)
			}
		}
	}
	return d
}

// Empty reports whether nothing changed membership.
func (d Diff) Empty() bool {
	return len(d.Enter) == 0 && len(d.Exit) == 0
}
