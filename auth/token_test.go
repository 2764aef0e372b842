package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_ExtractUserInfo_From_Generated_Token(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", "Ann", time.Hour)
	req.NoError(err)

	info, err := ExtractUserInfo(token)
	req.NoError(err)
	req.Equal("user-42", info.Subject)
	req.Equal("Ann", info.DisplayName)
}

func Test_ExtractUserInfo_Empty_Credential(t *testing.T) {
	req := require.New(t)

	info, err := ExtractUserInfo("")

	req.Error(err)
	req.Nil(info)
}

func Test_ExtractUserInfo_Malformed_Credential(t *testing.T) {
	req := require.New(t)

	// Two segments instead of three is not decodable
	info, err := ExtractUserInfo("abc.def")

	req.Error(err)
	req.Nil(info)
}

func Test_ExtractUserInfo_Missing_Claims(t *testing.T) {
	req := require.New(t)

	// Valid JWT shape, but the payload carries no name
	token, err := GenerateToken("user-42", "", time.Hour)
	req.NoError(err)

	info, err := ExtractUserInfo(token)

	// An empty name still decodes; identity completeness is the caller's
	// concern, display fallback happens at broadcast time
	req.NoError(err)
	req.Equal("", info.DisplayName)
}
