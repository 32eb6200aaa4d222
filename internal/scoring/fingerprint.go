package scoring

import (
	"encoding/hex"
	"sort"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// KeyFingerprint hashes the answer key of t (question ids and their correct
// option ids). Question text and option wording do not affect it.
func KeyFingerprint(t Test) string {
	questions := append([]Question(nil), t.Questions...)
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })

	buf := make([]byte, 0, 32*len(questions))
	for _, q := range questions {
		buf = strconv.AppendInt(buf, q.ID, 10)
		buf = append(buf, ':')
		for i, id := range q.CorrectSet() {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = strconv.AppendInt(buf, id, 10)
		}
		buf = append(buf, ';')
	}
	sum := blake2b.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
