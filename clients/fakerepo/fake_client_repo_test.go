package fakeclientrepo_test

import (
	"testing"

	fakeclientrepo "github.com/jrsteele09/go-auth-engine/clients/fakerepo"
	"github.com/jrsteele09/go-auth-engine/storage/storetest"
)

func TestFakeClientRepo(t *testing.T) {
	storetest.TestClientRepo(t, fakeclientrepo.NewFakeClientRepo())
}
