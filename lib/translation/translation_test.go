package translation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslateFallsBackToMessageID(t *testing.T) {
	Configure(t.TempDir(), "xx")

	assert.Equal(t, "Alert #3 deleted.", Translate("Alert #%d deleted.", 3))
	assert.Equal(t, "Which chain?", Translate("Which chain?"))
}
