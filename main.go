package main

import (
	"errors"
	"flag"
	"net"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"sync"
	"syscall"

	"gitlab_nss_daemon/config"
	"gitlab_nss_daemon/gitlab"
	"gitlab_nss_daemon/groupmap"
	"gitlab_nss_daemon/logging"
	"gitlab_nss_daemon/socket"
)

var log = logging.NewLogger("daemon")

func main() {
	configPath := flag.String("config", config.ConfigPath, "path to the daemon configuration file")
	flag.Parse()

	if err := logging.SetupDefault(); err != nil {
		log.Warn("File logging unavailable, continuing on stdout")
	}

	log.Info("Starting the GitLab NSS daemon...")
	log.Info("Reading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load config: %v", err)
	}
	if cfg.LogLevel != "" && !logging.SetGlobalLevelFromString(cfg.LogLevel) {
		log.Warn("Unknown log level %q, keeping default", cfg.LogLevel)
	}
	log.Info("Will use %s to talk to GitLab", cfg.GitLab.BaseURL)

	client := gitlab.NewClient(cfg.GitLab)
	table := groupmap.Build(cfg.NSS.GroupMapping, client, groupmap.SystemHostResolver)
	handler := socket.NewHandler(cfg, client, table)

	socketPath := cfg.General.SocketPath
	// Remove a stale socket left by a previous run
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		log.Fatal("Failed to remove existing socket %s: %v", socketPath, err)
	}

	log.Info("Binding socket to %s", socketPath)
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		log.Fatal("Failed to bind socket %s: %v", socketPath, err)
	}

	applySocketAccess(&cfg.General, socketPath)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("Received %v, shutting down", sig)
		listener.Close()
	}()

	log.Info("Listening...")
	var wg sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			log.Error("Failed to accept connection: %v", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			handler.HandleConnection(conn)
		}()
	}

	// Drain in-flight requests before removing the socket
	wg.Wait()
	os.Remove(socketPath)
	log.Info("Good bye!")
}

// applySocketAccess applies the configured permission bits and ownership to
// the socket path. Failures leave the socket usable with whatever access the
// umask produced, so they are warnings, not fatal.
func applySocketAccess(general *config.GeneralConfig, socketPath string) {
	mode := general.SocketPermissions.FileMode()
	log.Info("Setting socket permissions for %s to %#o", socketPath, uint32(mode))
	if err := os.Chmod(socketPath, mode); err != nil {
		log.Warn("Failed to change socket permissions: %v", err)
	}

	owner, group := general.Owner()
	uid, gid, err := resolveOwner(owner, group)
	if err != nil {
		log.Warn("Cannot resolve socket owner %q: %v", general.SocketOwner, err)
		return
	}
	if err := os.Chown(socketPath, uid, gid); err != nil {
		log.Warn("Failed to change socket ownership: %v", err)
	}
}

// resolveOwner maps a user and group name to numeric ids via the local
// account directories.
func resolveOwner(owner, group string) (int, int, error) {
	u, err := user.Lookup(owner)
	if err != nil {
		return 0, 0, err
	}
	g, err := user.LookupGroup(group)
	if err != nil {
		return 0, 0, err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, err
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, 0, err
	}
	return uid, gid, nil
}
