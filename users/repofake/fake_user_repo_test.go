package fakeuserrepo_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-engine/storage/storetest"
	fakeuserrepo "github.com/jrsteele09/go-auth-engine/users/repofake"
)

func TestFakeUserRepo(t *testing.T) {
	storetest.TestUserRepo(t, fakeuserrepo.NewFakeUserRepo())
}
