package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Batch folders arrive named by hand ("study_07", "Study 7 - SAE drop",
// "STUDY7"); all of them identify the same study.
var studyFolderPattern = regexp.MustCompile(`(?i)study[\s_-]*(\d+)`)

// StudyFromFolder infers the study identifier from a batch folder name and
// falls back to the supplied default when the name carries no study number.
func StudyFromFolder(folderName, fallback string) string {
	m := studyFolderPattern.FindStringSubmatch(folderName)
	if m == nil {
		return fallback
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return fallback
	}
	return fmt.Sprintf("Study %d", n)
}

// CanonicalFolderName is the study-derived name the batch folder is renamed
// to after validation.
func CanonicalFolderName(study string) string {
	return strings.ReplaceAll(study, " ", "_")
}
