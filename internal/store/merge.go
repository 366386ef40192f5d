package store

// MergeCharacters folds a duplicate character record into a surviving one.
// Field-union policy: append-unique for lists, prefer-non-empty for scalars
// (the survivor's value wins when both are set). The duplicate's id joins
// the survivor's alias set so old references remain resolvable. The caller
// is responsible for removing the duplicate record and rewriting event
// character lists.
func MergeCharacters(survivor, duplicate *Character) *Character {
	if survivor.Name == "" {
		survivor.Name = duplicate.Name
	}
	if survivor.Location == "" {
		survivor.Location = duplicate.Location
	}
	if survivor.CurrentTask == "" {
		survivor.CurrentTask = duplicate.CurrentTask
	}
	if survivor.Appearance == "" {
		survivor.Appearance = duplicate.Appearance
	}
	if survivor.SpeechStyle == "" {
		survivor.SpeechStyle = duplicate.SpeechStyle
	}
	if survivor.Description == "" {
		survivor.Description = duplicate.Description
	}

	survivor.Aliases = appendUnique(survivor.Aliases, duplicate.Aliases...)
	survivor.Aliases = appendUnique(survivor.Aliases, duplicate.ID)
	if duplicate.Name != "" && duplicate.Name != survivor.Name {
		survivor.Aliases = appendUnique(survivor.Aliases, duplicate.Name)
	}
	survivor.Traits = appendUnique(survivor.Traits, duplicate.Traits...)
	survivor.Factions = appendUnique(survivor.Factions, duplicate.Factions...)
	survivor.Status = appendUnique(survivor.Status, duplicate.Status...)
	survivor.Interests = appendUnique(survivor.Interests, duplicate.Interests...)
	survivor.EventRefs = appendUnique(survivor.EventRefs, duplicate.EventRefs...)

	return survivor
}

func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

// AppendUnique is the shared list-union helper used by the engines when
// applying additive mutations.
func AppendUnique(dst []string, values ...string) []string {
	return appendUnique(dst, values...)
}
