// Package mysqltest constructs short-lived MySQL instances for store tests.
//
// The backend runs MariaDB in a Docker container. Tests skip automatically
// when no Docker daemon is reachable.
package mysqltest

import (
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Instance is a disposable MariaDB server with a connected sqlx client.
type Instance struct {
	DB       *sqlx.DB
	Resource *dockertest.Resource
	config   *mysql.Config
}

// New starts a MariaDB container and connects to it.
// Skips the test when Docker is unavailable; fails it on startup errors.
func New(t testing.TB) *Instance {
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skip("mysqltest: Docker unavailable:", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skip("mysqltest: Docker unavailable:", err)
	}
	pool.MaxWait = 2 * time.Minute
	var passBytes [16]byte
	_, err = rand.Read(passBytes[:])
	require.NoError(t, err, "Getting random password bytes")
	password := hex.EncodeToString(passBytes[:])
	runOpts := &dockertest.RunOptions{
		Repository: "mariadb",
		Tag:        "10.6",
		Env: []string{
			"MYSQL_DATABASE=mysqltest",
			"MYSQL_ROOT_PASSWORD=" + password,
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "Creating MariaDB container")
	config := mysql.NewConfig()
	config.User = "root"
	config.Passwd = password
	config.Net = "tcp"
	config.Addr = "localhost:" + resource.GetPort("3306/tcp")
	config.DBName = "mysqltest"
	config.ParseTime = true
	config.AllowNativePasswords = true
	db, err := sqlx.Open("mysql", config.FormatDSN())
	require.NoError(t, err, "Opening MySQL client")
	require.NoError(t, pool.Retry(func() error {
		return db.Ping()
	}), "Connecting to MariaDB")
	t.Log("mysqltest: MariaDB is up at", config.Addr)
	return &Instance{DB: db, Resource: resource, config: config}
}

// Close removes the container and destroys all data.
func (i *Instance) Close(t testing.TB) {
	assert.NoError(t, i.DB.Close(), "Closing client")
	assert.NoError(t, i.Resource.Close(), "Removing container")
}
