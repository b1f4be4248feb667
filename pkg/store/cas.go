package store

// This file centralizes the CAS (check-and-set) state machine so every
// backend's Set/Delete stays textually tiny and none of them can drift
// from the others.

// handleSetCas stamps rec with its next CAS value and timestamp, following
// the same two-branch rule every backend shares: a record that already
// carries a positive, caller-supplied CAS gets that value incremented by
// one; a record with CAS zero (unconditional set, or first insert) gets
// the next id off the peripheral counter.
func handleSetCas(rec *Record, p *Peripherals) uint64 {
	if rec.Header.Cas > 0 {
		rec.Header.Cas++
	} else {
		rec.Header.Cas = p.NextCas()
	}
	rec.Header.Timestamp = p.timestamp()
	return rec.Header.Cas
}

func checkCasMatch(existing, provided uint64) bool {
	return existing == provided
}

// ExecuteSet runs the uniform CAS state machine for a set operation.
// checkExisting looks up the current record for the key, if any.
//
//   - rec.Header.Cas == 0: unconditional insert-or-overwrite.
//   - rec.Header.Cas > 0, key absent: initial set with an explicit CAS;
//     stored cas becomes provided+1.
//   - rec.Header.Cas > 0, key present, cas matches: overwrite, new cas is
//     stored+1.
//   - rec.Header.Cas > 0, key present, cas mismatch: ErrKeyExists.
func ExecuteSet(rec *Record, p *Peripherals, checkExisting func() (Record, bool)) (SetStatus, error) {
	if rec.Header.Cas > 0 {
		if existing, ok := checkExisting(); ok {
			if !checkCasMatch(existing.Header.Cas, rec.Header.Cas) {
				return SetStatus{}, ErrKeyExists
			}
			return SetStatus{Cas: handleSetCas(rec, p)}, nil
		}
		return SetStatus{Cas: handleSetCas(rec, p)}, nil
	}
	return SetStatus{Cas: handleSetCas(rec, p)}, nil
}

// ExecuteDelete runs the uniform CAS state machine for a delete operation.
// checkExisting looks up the current record; performDelete removes it and
// returns the record that was removed.
func ExecuteDelete(header Header, checkExisting func() (Record, bool), performDelete func() (Record, bool)) (Record, error) {
	if header.Cas == 0 {
		if _, ok := checkExisting(); !ok {
			return Record{}, ErrNotFound
		}
		if rec, ok := performDelete(); ok {
			return rec, nil
		}
		return Record{}, ErrNotFound
	}

	existing, ok := checkExisting()
	if !ok {
		return Record{}, ErrNotFound
	}
	if !checkCasMatch(existing.Header.Cas, header.Cas) {
		return Record{}, ErrKeyExists
	}
	if rec, ok := performDelete(); ok {
		return rec, nil
	}
	return Record{}, ErrNotFound
}
