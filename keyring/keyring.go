// Package keyring provides secure credential storage for the OpenVPN
// account. It uses the system keyring when available, falling back to
// encrypted local file storage when not, and renders the credentials into
// the file OpenVPN reads through --auth-user-pass.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zalando/go-keyring"

	"github.com/albanobattistella/eOVPN/common"
)

// serviceName is the identifier used in the system keyring.
const serviceName = "eovpn"

// Common errors returned by keyring operations.
var (
	ErrNotFound = common.ErrCredentialsNotFound
	ErrEmpty    = errors.New("username and password must not be empty")
)

// Storage backend state.
var (
	initOnce        sync.Once
	useLocalStorage atomic.Bool // flipped by Store on a keyring write failure
	localStoreMu    sync.RWMutex
	localStore      map[string]string
	localStoreFile  string
	encryptionKey   []byte
)

func initStorage() {
	initOnce.Do(func() {
		testKey := "eovpn-test-init"
		if err := keyring.Set(serviceName, testKey, "test"); err == nil {
			keyring.Delete(serviceName, testKey)
			useLocalStorage.Store(false)
		} else {
			common.LogWarn("System keyring unavailable, using encrypted file: %v", err)
			useLocalStorage.Store(true)
		}
		initLocalStorage()
	})
}

func initLocalStorage() {
	localStore = make(map[string]string)

	configDir, err := common.GetConfigDir()
	if err != nil {
		common.LogWarn("Credential file disabled: %v", err)
		return
	}
	localStoreFile = filepath.Join(configDir, common.CredentialsFileName)

	hostname, _ := os.Hostname()
	keyData := fmt.Sprintf("eovpn-%s-%s-%d", hostname, getMachineID(), os.Getuid())
	hash := sha256.Sum256([]byte(keyData))
	encryptionKey = hash[:]

	loadLocalStore()
}

func getMachineID() string {
	data, err := os.ReadFile("/etc/machine-id")
	if err == nil {
		return strings.TrimSpace(string(data))
	}
	return "default-machine-id"
}

func loadLocalStore() {
	data, err := os.ReadFile(localStoreFile)
	if err != nil {
		return
	}

	decrypted, err := decrypt(data)
	if err != nil {
		common.LogWarn("Could not decrypt credential file: %v", err)
		return
	}

	json.Unmarshal(decrypted, &localStore)
}

func saveLocalStore() error {
	if localStoreFile == "" {
		return common.ErrCredentialStorage
	}

	localStoreMu.RLock()
	data, err := json.Marshal(localStore)
	localStoreMu.RUnlock()
	if err != nil {
		return err
	}

	encrypted, err := encrypt(data)
	if err != nil {
		return err
	}

	return os.WriteFile(localStoreFile, encrypted, 0600)
}

func encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func decrypt(data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// Store saves the password for username.
func Store(username, password string) error {
	if username == "" || password == "" {
		return ErrEmpty
	}
	initStorage()

	if !useLocalStorage.Load() {
		if err := keyring.Set(serviceName, username, password); err == nil {
			return nil
		}
		common.LogWarn("Keyring write failed, falling back to encrypted file")
		useLocalStorage.Store(true)
	}

	localStoreMu.Lock()
	localStore[username] = password
	localStoreMu.Unlock()
	if err := saveLocalStore(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCredentialStorage, err)
	}
	return nil
}

// Get retrieves the password stored for username.
func Get(username string) (string, error) {
	if username == "" {
		return "", ErrEmpty
	}
	initStorage()

	if !useLocalStorage.Load() {
		password, err := keyring.Get(serviceName, username)
		if err == nil {
			return password, nil
		}
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
	}

	localStoreMu.RLock()
	password, exists := localStore[username]
	localStoreMu.RUnlock()
	if !exists {
		return "", ErrNotFound
	}
	return password, nil
}

// Delete removes the password stored for username.
func Delete(username string) error {
	if username == "" {
		return ErrEmpty
	}
	initStorage()

	if !useLocalStorage.Load() {
		keyring.Delete(serviceName, username)
	}

	localStoreMu.Lock()
	_, existed := localStore[username]
	delete(localStore, username)
	localStoreMu.Unlock()
	if existed {
		return saveLocalStore()
	}
	return nil
}

// WriteAuthFile writes the two-line username/password file consumed by
// openvpn --auth-user-pass. The file is created with 0600 permissions.
func WriteAuthFile(path, username string) error {
	password, err := Get(username)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	content := fmt.Sprintf("%s\n%s\n", username, password)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, 0600)
}
