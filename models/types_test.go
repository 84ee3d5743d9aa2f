package models_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"poll-anchor/models"
)

func TestChoiceValueText(t *testing.T) {
	var b models.Ballot
	doc := `
serial: 7
choice1: {votecode: "1111", choice: For}
choice2: {votecode: "2222", choice: against}
`
	require.NoError(t, yaml.Unmarshal([]byte(doc), &b))
	require.EqualValues(t, 7, b.Serial)
	require.Equal(t, models.For, b.Choice1.Choice)
	require.Equal(t, models.Against, b.Choice2.Choice)

	out, err := yaml.Marshal(b)
	require.NoError(t, err)
	require.Contains(t, string(out), "choice: Against")

	_, err = models.ParseChoiceValue("maybe")
	require.Error(t, err)
}

func TestIsFatal(t *testing.T) {
	require.False(t, models.IsFatal(nil))
	require.False(t, models.IsFatal(fmt.Errorf("%w: bad hex", models.ErrDecode)))
	for _, kind := range []error{models.ErrConfig, models.ErrCrypto, models.ErrNetwork, models.ErrIO} {
		require.True(t, models.IsFatal(fmt.Errorf("%w: boom", kind)))
	}
	require.True(t, models.IsFatal(errors.New("unclassified")))
}
